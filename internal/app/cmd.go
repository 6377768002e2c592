package app

import (
	"fmt"
	"strings"
)

// Command はバイナリのサブコマンド。
type Command string

const (
	CommandServe   Command = "serve"
	CommandWorker  Command = "worker"
	CommandMigrate Command = "migrate"

	// CommandHealthcheck はdistrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// Invocation は解析済みのコマンドライン。
type Invocation struct {
	Command Command
	// Migrate はCommandMigrateのときのみ意味を持つ。
	Migrate MigrateAction
}

// Usage はサブコマンドの一覧。
const Usage = "usage: ayurshop [serve | worker | migrate [up|down|version] | healthcheck]"

// ParseCommand はos.Args[1:]を解析する。引数なしはserve。
// 未知のサブコマンドは黙ってserveに落とさずエラーにする。
func ParseCommand(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{Command: CommandServe}, nil
	}

	switch cmd := Command(strings.ToLower(args[0])); cmd {
	case CommandServe, CommandWorker, CommandHealthcheck:
		return Invocation{Command: cmd}, nil
	case CommandMigrate:
		action := MigrateUp
		if len(args) > 1 {
			action = MigrateAction(strings.ToLower(args[1]))
		}
		switch action {
		case MigrateUp, MigrateDown, MigrateVersion:
			return Invocation{Command: cmd, Migrate: action}, nil
		}
		return Invocation{}, fmt.Errorf("unknown migrate action %q\n%s", args[1], Usage)
	default:
		return Invocation{}, fmt.Errorf("unknown command %q\n%s", args[0], Usage)
	}
}
