package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gekko3d/sysviz"
	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runOptions struct {
	configPath string
	debug      bool
	width      int
	height     int
	windowed   bool
	unified    bool
	demo       bool
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "sysviz",
		Short:        "Live 3D visualization of system telemetry",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is the user config dir)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newConfigCmd(&configPath))
	return root
}

func resolveConfigPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return sysviz.DefaultConfigPath()
}

func newRunCmd(configPath *string) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the visualizer",
		Long: `Open the visualizer fullscreen and render until a key is pressed,
a mouse button is clicked or the mouse moves.

Examples:
  sysviz run
  sysviz run --windowed --width 1280 --height 720
  sysviz run --unified --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPath
			return runVisualizer(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "show the statistics overlay and debug logs")
	cmd.Flags().IntVar(&opts.width, "width", 1280, "window width when --windowed")
	cmd.Flags().IntVar(&opts.height, "height", 720, "window height when --windowed")
	cmd.Flags().BoolVar(&opts.windowed, "windowed", false, "run in a window and ignore input")
	cmd.Flags().BoolVar(&opts.unified, "unified", false, "render one scene instead of composited layers")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "use fixed telemetry instead of sampling the host")
	return cmd
}

func runVisualizer(ctx context.Context, opts *runOptions) error {
	log := sysviz.NewSessionLogger(opts.debug)

	path, err := resolveConfigPath(opts.configPath)
	if err != nil {
		return err
	}
	cfg, err := sysviz.LoadConfigOrDefault(path)
	if err != nil {
		return err
	}
	if opts.unified {
		cfg.LayerArchitecture = false
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := sysviz.OpenWindow(sysviz.WindowOptions{
		Width:    opts.width,
		Height:   opts.height,
		Title:    "sysviz",
		Windowed: opts.windowed,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := win.NewDevice(log)
	if err != nil {
		return err
	}

	var monitor sysviz.SystemMonitor
	if opts.demo {
		monitor = &sysviz.StaticMonitor{Metrics: core.RawMetrics{CPU: 45, RAM: 60, Disk: 15, NetBytesPerSec: 512 * 1024}}
	} else {
		monitor = sysviz.NewHostMonitor(log)
	}

	engine := sysviz.NewEngine(dev, monitor, cfg, sysviz.WithLogger(log), sysviz.WithDebug(opts.debug))
	log.Infof("sysviz %s: config %s, layers %v", version, path, cfg.LayerArchitecture)
	return sysviz.Run(ctx, win, engine)
}

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(*configPath)
			if err != nil {
				return err
			}
			return initConfig(cmd.OutOrStdout(), path, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  `Print the configuration after defaults, the file and SYSVIZ_* environment overrides are applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(*configPath)
			if err != nil {
				return err
			}
			return showConfig(cmd.OutOrStdout(), path)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}

func initConfig(out io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := sysviz.SaveConfig(sysviz.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func showConfig(out io.Writer, path string) error {
	cfg, err := sysviz.LoadConfigOrDefault(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
