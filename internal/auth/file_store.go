package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hitoshi/switchtrack/internal/model"
)

// FileCredentialStore はトークン一式をJSONファイルとして保存するCredentialStore実装。
// 保存先ディレクトリは初回保存時に作成される（0700）。
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore はFileCredentialStoreを生成する。
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Path はトークンファイルのパスを返す。
func (s *FileCredentialStore) Path() string {
	return s.path
}

// Load は保存済みバンドルを読み込む。
// ファイルが存在しない場合は(nil, nil)、破損している場合はConfigurationErrorを返す。
// 呼び出し側はConfigurationErrorを未認証と同様に扱い、再認証で回復する。
func (s *FileCredentialStore) Load() (*CredentialBundle, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, model.NewConfigurationError("トークンファイルを読み取れません", err)
	}

	var bundle CredentialBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, model.NewConfigurationError("トークンファイルが破損しています", err)
	}

	if bundle.SessionToken == "" {
		return nil, nil
	}

	return &bundle, nil
}

// Save はバンドルをJSONとして永続化する。
// 同一ディレクトリ内の一時ファイルに書き込んでからリネームすることで、
// 書き込み途中のクラッシュで新旧トークンが混在したファイルが残らないようにする。
// リネームのアトミック性に依存するため、fsyncまでの耐久性は保証しない。
func (s *FileCredentialStore) Save(bundle *CredentialBundle) error {
	if bundle == nil || bundle.SessionToken == "" {
		return fmt.Errorf("セッショントークンのないバンドルは保存できません")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("トークンディレクトリの作成に失敗しました: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("トークンのエンコードに失敗しました: %w", err)
	}
	payload = append(payload, '\n')

	tmp, err := os.CreateTemp(dir, "tokens-*.json")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("トークンの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("トークンファイルの権限設定に失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("トークンファイルの置き換えに失敗しました: %w", err)
	}

	return nil
}

// Clear は保存済みバンドルを削除する。ファイルが存在しない場合もエラーにしない。
func (s *FileCredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("トークンファイルの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialStore = (*FileCredentialStore)(nil)
