package app

// Command は起動時に選択するサブコマンドを表す。
type Command string

const (
	// CommandServe は会員ポータルAPIサーバーとして起動する。
	CommandServe Command = "serve"
	// CommandWorker はメンバーシップ期限切れ遷移ワーカーとして起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーに対する生存確認を行って終了する。
	// distrolessコンテナにはcurlがないため、このサブコマンドで代替する。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 未指定・未知のサブコマンドはCommandServeとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
