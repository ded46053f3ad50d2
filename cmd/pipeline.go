package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smazurov/scenecast/internal/config"
	"github.com/smazurov/scenecast/internal/ffmpeg"
	"github.com/smazurov/scenecast/internal/logging"
	"github.com/smazurov/scenecast/internal/pipeline"
)

// CreatePipelineCmd creates the pipeline command.
func CreatePipelineCmd() *cobra.Command {
	var (
		configFile  string
		scenesFile  string
		target      string
		platform    string
		showSecrets bool
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Print the pipeline for the active scene",
		Long: `Builds the pipeline description the active scene would start with and prints it ` +
			`as JSON followed by the ffmpeg command line. The stream key is masked unless --show-secrets is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("pipeline")

			p, err := config.LoadProfile(configFile)
			if err != nil {
				return err
			}
			doc, err := config.LoadScenes(scenesFile)
			if err != nil {
				return err
			}
			model, err := config.BuildModel(doc, logger)
			if err != nil {
				return err
			}

			opts := pipeline.Options{
				Platform:  pipeline.HostPlatform(),
				Target:    pipeline.Target(target),
				SessionID: uuid.NewString(),
				StartedAt: time.Now(),
			}
			if platform != "" {
				opts.Platform = pipeline.Platform(platform)
			}
			desc, err := pipeline.Build(model.Active(), p, opts)
			if err != nil {
				return err
			}
			if !showSecrets {
				desc = desc.Redacted()
			}

			encoded, err := desc.EncodeIndent()
			if err != nil {
				return err
			}
			args, err := ffmpeg.BuildArgs(desc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, string(encoded))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "ffmpeg "+shellJoin(args))
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&scenesFile, "scenes", "scenes.toml", "Path to scenes file")
	cmd.Flags().StringVar(&target, "target", string(pipeline.TargetAuto), "Sink to build for (auto, stream, record)")
	cmd.Flags().StringVar(&platform, "platform", "", "Capture platform override (linux, darwin, windows)")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the stream key unmasked")

	return cmd
}

// shellJoin quotes arguments containing shell metacharacters.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$;&|<>()[]{}*?!#~`") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
