package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"salesmanager/internal/config"
	"salesmanager/internal/utils/logger"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "salesmanager-server",
	Short: "Сервер синхронизации Sales Manager",
	Long: `Сервер принимает пакеты офлайн-операций с мобильных устройств
(товары, продажи, движения склада), обнаруживает конфликты
и отдает изменения сервера по watermark.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) error {
	cfg = config.Load()
	log = logger.NewWithLevel(cfg.Env, cfg.Logger.LogLevel)
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env", "", "окружение: local, dev, prod")
	flags.String("database-uri", "", "строка подключения PostgreSQL")
	flags.String("storage", "", "хранилище: postgres или memory")
	flags.String("log-level", "", "уровень логирования")

	// флаги привязаны к тем же ключам, что и переменные окружения
	_ = viper.BindPFlag("app_env", flags.Lookup("env"))
	_ = viper.BindPFlag("database_uri", flags.Lookup("database-uri"))
	_ = viper.BindPFlag("storage_driver", flags.Lookup("storage"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(serveCmd, migrateCmd)
}
