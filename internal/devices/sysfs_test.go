package devices

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSysfsListCameras(t *testing.T) {
	root := t.TempDir()
	class := filepath.Join(root, "video4linux")
	writeFile(t, filepath.Join(class, "video0", "name"), "HD Pro Webcam C920\n")
	writeFile(t, filepath.Join(class, "video0", "index"), "0\n")
	writeFile(t, filepath.Join(class, "video1", "name"), "HD Pro Webcam C920\n")
	writeFile(t, filepath.Join(class, "video1", "index"), "1\n")
	writeFile(t, filepath.Join(class, "video10", "index"), "0\n")
	writeFile(t, filepath.Join(class, "video2", "name"), "Capture Card\n")

	e := &SysfsEnumerator{
		VideoClass: class,
		StableNames: func() map[string]string {
			return map[string]string{"/dev/video0": "usb-046d_C920-video-index0"}
		},
	}
	cams, err := e.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("ListCameras: %v", err)
	}

	want := []DeviceInfo{
		{ID: "usb-046d_C920-video-index0", Label: "HD Pro Webcam C920", Path: "/dev/video0"},
		{ID: "/dev/video2", Label: "Capture Card", Path: "/dev/video2"},
		{ID: "/dev/video10", Label: UnknownCamera, Path: "/dev/video10"},
	}
	if len(cams) != len(want) {
		t.Fatalf("got %d cameras, want %d: %+v", len(cams), len(want), cams)
	}
	for i := range want {
		if cams[i] != want[i] {
			t.Errorf("camera %d = %+v, want %+v", i, cams[i], want[i])
		}
	}
}

func TestSysfsMissingPathsAreEmpty(t *testing.T) {
	root := t.TempDir()
	e := &SysfsEnumerator{VideoClass: filepath.Join(root, "none"), PCMList: filepath.Join(root, "pcm")}

	cams, err := e.ListCameras(context.Background())
	if err != nil || len(cams) != 0 {
		t.Errorf("ListCameras = %v, %v; want empty", cams, err)
	}
	mics, err := e.ListMicrophones(context.Background())
	if err != nil || len(mics) != 0 {
		t.Errorf("ListMicrophones = %v, %v; want empty", mics, err)
	}
}

func TestSysfsListMicrophones(t *testing.T) {
	pcm := filepath.Join(t.TempDir(), "pcm")
	writeFile(t, pcm, `00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
00-01: ALC892 Digital : ALC892 Digital : playback 1
01-00: USB Audio : USB Audio : capture 1
02-03:  :  : capture 1
garbage line
`)

	mics, err := (&SysfsEnumerator{PCMList: pcm}).ListMicrophones(context.Background())
	if err != nil {
		t.Fatalf("ListMicrophones: %v", err)
	}
	want := []DeviceInfo{
		{ID: "hw:0,0", Label: "ALC892 Analog"},
		{ID: "hw:1,0", Label: "USB Audio"},
		{ID: "hw:2,3", Label: UnknownMicrophone},
	}
	if len(mics) != len(want) {
		t.Fatalf("got %+v, want %+v", mics, want)
	}
	for i := range want {
		if mics[i] != want[i] {
			t.Errorf("mic %d = %+v, want %+v", i, mics[i], want[i])
		}
	}
}

func TestResolveDevicePath(t *testing.T) {
	dir := t.TempDir()
	byID := filepath.Join(dir, "by-id")
	writeFile(t, filepath.Join(byID, "usb-cam-video-index0"), "")

	oldID, oldPath := v4lByID, v4lByPath
	v4lByID, v4lByPath = byID, filepath.Join(dir, "by-path")
	t.Cleanup(func() { v4lByID, v4lByPath = oldID, oldPath })

	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{"/dev/video0", "/dev/video0", false},
		{"usb-cam-video-index0", filepath.Join(byID, "usb-cam-video-index0"), false},
		{"missing", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveDevicePath(tt.id)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ResolveDevicePath(%q) = %q, %v; want %q, err=%v", tt.id, got, err, tt.want, tt.wantErr)
		}
	}
}
