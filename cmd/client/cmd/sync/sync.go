package sync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"salesmanager/cmd/client/cmd/output"
	"salesmanager/internal/app/client"
	syncdomain "salesmanager/internal/domain/sync"
)

var (
	pullTypes []string
	forceSync bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Отправить очередь и забрать изменения сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		if err := app.CheckConnection(cmd.Context()); err != nil {
			return fmt.Errorf("сервер недоступен: %w", err)
		}

		if forceSync {
			if err := app.ForceSync(cmd.Context()); err != nil {
				return err
			}
		}

		start := time.Now()
		pushed, pulled, err := app.Sync(cmd.Context())
		if pushed != nil {
			printPush(cmd, pushed)
		}
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}
		printPull(cmd, pulled)

		if !output.JSON(cmd) {
			fmt.Printf("%s Синхронизация завершена за %v\n", output.Success("✓"), time.Since(start).Round(time.Millisecond))
		}
		return nil
	},
}

var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Отправить очередь на сервер",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		res, err := app.Push(cmd.Context())
		if res != nil {
			printPush(cmd, res)
		}
		return err
	},
}

var PullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Забрать изменения сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		kinds := make([]syncdomain.EntityType, 0, len(pullTypes))
		for _, t := range pullTypes {
			k, err := syncdomain.ParseEntityType(t)
			if err != nil {
				return err
			}
			kinds = append(kinds, k)
		}

		res, err := app.Pull(cmd.Context(), kinds...)
		if err != nil {
			return err
		}
		printPull(cmd, res)
		return nil
	},
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние очереди устройства и сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		local, err := app.LocalStatus(cmd.Context())
		if err != nil {
			return err
		}
		server, serverErr := app.ServerStatus(cmd.Context())

		return output.Print(cmd, map[string]any{"local": local, "server": server}, func() {
			fmt.Println(output.Title("Устройство"))
			watermark := local.Watermark
			if watermark == "" {
				watermark = "синхронизации еще не было"
			}
			fmt.Printf("  Watermark:   %s\n", watermark)
			fmt.Printf("  В очереди:   %d\n", local.Pending)
			fmt.Printf("  Конфликты:   %s\n", output.Warn(local.Conflicts))
			fmt.Printf("  Ошибки:      %s\n", output.Fail(local.Failed))
			for kind, n := range local.Entities {
				fmt.Printf("  %-15s %d\n", kind, n)
			}

			fmt.Println(output.Title("Сервер"))
			if serverErr != nil {
				fmt.Printf("  %s %v\n", output.Fail("✗"), serverErr)
				return
			}
			fmt.Printf("  Статус:      %s\n", output.Success(server.Status))
			fmt.Printf("  Версия:      %s\n", server.Version)
			fmt.Printf("  Время:       %s\n", server.ServerTime)
			for kind, n := range server.EntityCounts {
				fmt.Printf("  %-15s %d\n", kind, n)
			}
		})
	},
}

func printPush(cmd *cobra.Command, res *client.PushResult) {
	_ = output.Print(cmd, res, func() {
		fmt.Printf("Отправлено: %s, конфликтов: %s, ошибок: %s, пакетов: %d\n",
			output.Success(res.Sent), output.Warn(res.Conflicts), output.Fail(res.Failed), res.Batches)
		if res.Retried > 0 || res.Deferred > 0 {
			fmt.Printf("Осталось в очереди: %d\n", res.Deferred)
		}
	})
}

func printPull(cmd *cobra.Command, res *client.PullResult) {
	_ = output.Print(cmd, res, func() {
		fmt.Printf("Получено: %d сущностей за %d страниц, watermark %s\n",
			res.Downloaded, res.Pages, syncdomain.FormatTimestamp(res.Watermark))
	})
}

func init() {
	SyncCmd.Flags().BoolVarP(&forceSync, "force", "f", false, "запросить принудительную синхронизацию на сервере")
	PullCmd.Flags().StringSliceVar(&pullTypes, "types", nil, "только эти типы сущностей")
}
