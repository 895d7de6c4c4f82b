package conflict

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"salesmanager/cmd/client/cmd/output"
	"salesmanager/internal/app/client"
)

var (
	userID     int64
	resolution string
	resolvedBy string
	verbose    bool
)

var ConflictCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Конфликты синхронизации на сервере",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		var filter *int64
		if cmd.Flags().Changed("user") {
			filter = &userID
		}

		conflicts, err := app.Conflicts(cmd.Context(), filter)
		if err != nil {
			return err
		}

		return output.Print(cmd, conflicts, func() {
			if len(conflicts) == 0 {
				fmt.Println(output.Success("Неразрешенных конфликтов нет"))
				return
			}
			for _, c := range conflicts {
				fmt.Printf("#%-5d %s %s/%s %s\n",
					c.ID, output.Warn(c.ConflictType), c.EntityType, c.EntityID, output.Faint(c.CreatedAt))
				if c.ConflictDetails != "" {
					fmt.Printf("       %s\n", c.ConflictDetails)
				}
				if verbose {
					fmt.Printf("       клиент: %s\n       сервер: %s\n", c.LocalData, c.ServerData)
				}
			}
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Закрыть конфликт",
	Long: `Отмечает конфликт разрешенным. Сущности на сервере не меняются:
стратегия фиксирует решение оператора.

Стратегии: SERVER_WINS, CLIENT_WINS, MANUAL, MERGED`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("некорректный ID конфликта %q", args[0])
		}

		c, err := app.Resolve(cmd.Context(), id, resolution, resolvedBy)
		if err != nil {
			return err
		}

		return output.Print(cmd, c, func() {
			fmt.Printf("%s Конфликт #%d закрыт: %s (%s)\n",
				output.Success("✓"), c.ID, c.ResolutionStrategy, c.ResolvedBy)
		})
	},
}

func init() {
	ConflictCmd.Flags().Int64Var(&userID, "user", 0, "только конфликты пользователя")
	ConflictCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "показать данные клиента и сервера")

	resolveCmd.Flags().StringVarP(&resolution, "strategy", "s", "SERVER_WINS", "стратегия разрешения")
	resolveCmd.Flags().StringVar(&resolvedBy, "by", "", "кто разрешил конфликт")

	ConflictCmd.AddCommand(resolveCmd)
}
