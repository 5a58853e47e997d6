package main

import (
	"context"
	"fmt"
	"os"

	"github.com/SlpAus/ricebowl-portal/internal/board"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var boardLogFile string

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "在终端中显示实时看板",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().StringVar(&boardLogFile, "log-file", "", "日志写入的文件，默认不输出日志")
}

func runBoard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 终端界面占用了标准输出，日志只能写到文件
	logger := zerolog.Nop()
	if boardLogFile != "" {
		f, err := os.OpenFile(boardLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("无法打开日志文件: %w", err)
		}
		defer f.Close()
		level, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zerolog.InfoLevel
		}
		logger = zerolog.New(f).Level(level).With().Timestamp().Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.stop()

	a.warmStart(ctx)
	p := tea.NewProgram(board.New(a.engine, a.engine.Document().Current()), tea.WithAltScreen())
	go board.Forward(ctx, a.engine.Document(), p.Send)

	if err := a.engine.StartRefresh(ctx); err != nil {
		return err
	}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("终端界面异常退出: %w", err)
	}
	return nil
}
