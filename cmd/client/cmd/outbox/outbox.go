package outbox

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"salesmanager/cmd/client/cmd/output"
	"salesmanager/internal/app/client"
)

var (
	entityType    string
	operationType string
	entityID      string
	refLocalID    string
	data          string
	dataFile      string
	statusFilter  string
)

var OutboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Локальная очередь операций",
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Записать операцию в очередь",
	Long: `Записывает операцию над сущностью в локальную очередь.
Операция уйдет на сервер при следующем push или sync.

Примеры:
  salesmanager outbox add --type product --op create --data '{"name":"Молоко","sellingPrice":"1.20","stockQuantity":"10"}'
  salesmanager outbox add --type product --op update --ref <local_id> --data '{"sellingPrice":"1.35"}'
  salesmanager outbox add --type stock_movement --op create --data '{"product_local_id":"<local_id>","quantity":"5","movementType":"IN"}'
  salesmanager outbox add --type sale --op delete --id 17`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		if dataFile != "" {
			raw, err := os.ReadFile(dataFile)
			if err != nil {
				return fmt.Errorf("ошибка чтения файла данных: %w", err)
			}
			data = string(raw)
		}

		op, err := app.Record(cmd.Context(), client.RecordInput{
			EntityType:    entityType,
			OperationType: operationType,
			EntityID:      entityID,
			RefLocalID:    refLocalID,
			Data:          data,
		})
		if err != nil {
			return err
		}

		return output.Print(cmd, op, func() {
			fmt.Printf("%s %s %s записана, local_id: %s\n",
				output.Success("✓"), op.EntityType, op.OperationType, op.LocalID)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать операции в очереди",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		ops, err := app.Outbox(cmd.Context(), client.OutboxStatus(statusFilter))
		if err != nil {
			return err
		}

		return output.Print(cmd, ops, func() {
			if len(ops) == 0 {
				fmt.Println("Очередь пуста")
				return
			}
			for _, op := range ops {
				fmt.Printf("%-5d %-10s %-15s %-7s id=%-6s %s\n",
					op.Seq, statusLabel(op.Status), op.EntityType, op.OperationType, op.EntityID, output.Faint(op.LocalID))
				if op.LastError != "" {
					fmt.Printf("      %s\n", output.Faint(op.LastError))
				}
			}
		})
	},
}

func statusLabel(s client.OutboxStatus) string {
	switch s {
	case client.OutboxSent:
		return output.Success(s)
	case client.OutboxConflict:
		return output.Warn(s)
	case client.OutboxFailed:
		return output.Fail(s)
	default:
		return string(s)
	}
}

func init() {
	addCmd.Flags().StringVarP(&entityType, "type", "t", "", "тип сущности: product, sale, stock_movement")
	addCmd.Flags().StringVarP(&operationType, "op", "o", "create", "операция: create, update, delete")
	addCmd.Flags().StringVar(&entityID, "id", "", "серверный ID сущности")
	addCmd.Flags().StringVar(&refLocalID, "ref", "", "local_id операции create, если серверный ID еще неизвестен")
	addCmd.Flags().StringVarP(&data, "data", "d", "", "атрибуты сущности в JSON")
	addCmd.Flags().StringVar(&dataFile, "data-file", "", "файл с атрибутами сущности в JSON")
	_ = addCmd.MarkFlagRequired("type")

	listCmd.Flags().StringVarP(&statusFilter, "status", "s", "", "фильтр: pending, sent, failed, conflict")

	OutboxCmd.AddCommand(addCmd, listCmd)
}
