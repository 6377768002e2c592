// Command ayurshop はハーブ製品ショップのAPIサーバー、ワーカー、マイグレーションを起動する。
//
// 使い方:
//
//	ayurshop [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/ayurshop/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ayurshop: %v\n", err)
		os.Exit(1)
	}
}
