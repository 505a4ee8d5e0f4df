// Package translation はゲーム名の翻訳CSVワークフローを提供する。
//
// 履歴APIはタイトル名を端末の言語設定に依らず返すことがあるため、
// 運用者がCSVで表示名を整備し、ダッシュボードに反映する。
package translation

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/hitoshi/switchtrack/internal/model"
	"github.com/hitoshi/switchtrack/internal/repository"
	"github.com/hitoshi/switchtrack/internal/security"
)

// csvHeader はエクスポート/インポートで共通のCSVヘッダ。
var csvHeader = []string{"title_id", "source_name", "localized_name"}

// Service は翻訳CSVのエクスポート・インポートと反映を提供する。
type Service struct {
	repo      repository.TranslationRepository
	sanitizer security.NameSanitizerService
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(repo repository.TranslationRepository, sanitizer security.NameSanitizerService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sanitizer: sanitizer, logger: logger}
}

// ExportUntranslated は未翻訳ゲームの一覧をCSVとして書き出す。
// localized_name列は空欄で出力し、運用者が記入して再インポートする。
// 書き出した件数を返す。
func (s *Service) ExportUntranslated(ctx context.Context, w io.Writer) (int, error) {
	games, err := s.repo.ListUntranslatedGames(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("CSVヘッダの書き出しに失敗しました: %w", err)
	}
	for _, g := range games {
		if err := cw.Write([]string{g.TitleID, g.TitleName, ""}); err != nil {
			return 0, fmt.Errorf("CSV行の書き出しに失敗しました: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("CSVのフラッシュに失敗しました: %w", err)
	}

	s.logger.Info("未翻訳ゲームをエクスポートしました", slog.Int("count", len(games)))
	return len(games), nil
}

// Import はCSVから翻訳エントリを読み込んで保存し、gamesに反映する。
// localized_nameが空欄の行（未記入）はスキップする。
// 保存した翻訳数と反映されたゲーム行数を返す。
func (s *Service) Import(ctx context.Context, r io.Reader) (imported, applied int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("CSVヘッダの読み取りに失敗しました: %w", err)
	}
	if header[0] != csvHeader[0] {
		return 0, 0, fmt.Errorf("CSVヘッダが不正です: %v", header)
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("CSV行の読み取りに失敗しました: %w", err)
		}

		localized := s.sanitizer.SanitizeName(record[2])
		if record[0] == "" || localized == "" {
			continue
		}

		tr := &model.GameTranslation{
			TitleID:       record[0],
			SourceName:    record[1],
			LocalizedName: localized,
		}
		if err := s.repo.UpsertTranslation(ctx, tr); err != nil {
			return 0, 0, err
		}
		imported++
	}

	applied, err = s.repo.ApplyTranslations(ctx)
	if err != nil {
		return 0, 0, err
	}

	s.logger.Info("翻訳をインポートしました",
		slog.Int("imported", imported),
		slog.Int("applied", applied),
	)
	return imported, applied, nil
}
