package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SlpAus/ricebowl-portal/internal/platform/logging"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "拉取一次快照并输出提交后的视图JSON",
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Source.Timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.stop()

	report, err := a.engine.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("拉取快照失败: %w", err)
	}
	for _, d := range report.Diagnostics {
		logger.Warn().Str("step", d.Step).Msg(d.Message)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(a.engine.Document().Current())
}
