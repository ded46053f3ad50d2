//go:build !unix

package process

import "os/exec"

func configureSysProcAttr(_ *exec.Cmd) {}
