package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandCollect は収集サイクルを1回実行して終了することを示す。
	CommandCollect Command = "collect"
	// CommandAuth は対話認証フローを実行することを示す。
	CommandAuth Command = "auth"
	// CommandServe はダッシュボードAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は収集ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandTranslate は翻訳CSVのエクスポート/インポートを実行することを示す。
	CommandTranslate Command = "translate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandCollectを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandCollect
	}

	switch args[0] {
	case "collect":
		return CommandCollect
	case "auth":
		return CommandAuth
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "migrate":
		return CommandMigrate
	case "translate":
		return CommandTranslate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandCollect
	}
}
