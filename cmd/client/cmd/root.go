package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"salesmanager/cmd/client/cmd/conflict"
	"salesmanager/cmd/client/cmd/outbox"
	"salesmanager/cmd/client/cmd/sync"
	"salesmanager/internal/app/client"
	"salesmanager/internal/app/client/config"
	"salesmanager/internal/utils/logger"
)

var (
	cfgFile string
	log     *slog.Logger
	app     *client.App
)

var rootCmd = &cobra.Command{
	Use:   "salesmanager",
	Short: "Клиент синхронизации Sales Manager",
	Long: `Клиент устройства: записывает операции над товарами, продажами
и движениями склада в локальную очередь (SQLite), отправляет их на сервер
пакетами и забирает изменения сервера по watermark.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	log = logger.NewWriter(os.Stderr, cfg.Env, cfg.LogLevel)

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(client.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(filepath.Join(home, ".salesmanager"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// конфиг не найден, используем значения по умолчанию
	}

	return config.Load(v)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "конфигурационный файл")
	flags.Bool("json", false, "вывод в формате JSON")
	flags.String("server", "", "адрес сервера, например http://localhost:8080")
	flags.String("token", "", "bearer-токен для API")
	flags.String("device", "", "идентификатор устройства")
	flags.String("log-level", "", "уровень логирования")

	_ = viper.BindPFlag("server_url", flags.Lookup("server"))
	_ = viper.BindPFlag("token", flags.Lookup("token"))
	_ = viper.BindPFlag("device_id", flags.Lookup("device"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(outbox.OutboxCmd, sync.SyncCmd, sync.PushCmd, sync.PullCmd, sync.StatusCmd, conflict.ConflictCmd)
}
