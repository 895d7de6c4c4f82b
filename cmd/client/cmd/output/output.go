// Package output печать результатов команд: цветной текст или JSON
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	Success = color.New(color.FgGreen).SprintFunc()
	Warn    = color.New(color.FgYellow).SprintFunc()
	Fail    = color.New(color.FgRed).SprintFunc()
	Title   = color.New(color.Bold).SprintFunc()
	Faint   = color.New(color.Faint).SprintFunc()
)

// JSON включен ли вывод в JSON (глобальный флаг --json)
func JSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// Print выводит v как JSON при --json, иначе вызывает text
func Print(cmd *cobra.Command, v any, text func()) error {
	if !JSON(cmd) {
		text()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("ошибка вывода JSON: %w", err)
	}
	return nil
}
