package history

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// snapshotNameLayout はアーカイブファイル名のタイムスタンプ形式。
const snapshotNameLayout = "20060102_150405"

// Archiver は取得した生スナップショットをローカルに保全する。
// 履歴APIは過去データを再提供しないため、取り込み前に必ず生データを残す。
type Archiver struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver はArchiver の新しいインスタンスを生成する。
func NewArchiver(dir string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{dir: dir, logger: logger, now: time.Now}
}

// Archive は生のレスポンスボディをタイムスタンプ付きファイルとして書き出し、
// 書き込んだファイルのパスを返す。
func (a *Archiver) Archive(raw []byte) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("アーカイブディレクトリの作成に失敗しました: %w", err)
	}

	name := fmt.Sprintf("history_%s.json", a.now().Format(snapshotNameLayout))
	path := filepath.Join(a.dir, name)

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("スナップショットの書き出しに失敗しました: %w", err)
	}

	a.logger.Info("スナップショットをアーカイブしました",
		slog.String("path", path),
		slog.Int("bytes", len(raw)),
	)
	return path, nil
}
