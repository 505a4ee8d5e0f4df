package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hitoshi/switchtrack/internal/model"
)

// sessionTokenCodePattern は貼り付けられたコールバックURLから
// 使い捨ての認可コードを抽出するパターン。
var sessionTokenCodePattern = regexp.MustCompile(`session_token_code=([^&#]+)`)

// skipKeyword は運用者が認証を明示的に中断するための入力値。
const skipKeyword = "skip"

// Flow は対話的なPKCE認可フローを駆動する。
// 運用者に認可URLを提示し、貼り付けられたコールバックURLから
// 認可コードを取り出して2段階のトークン交換を行う。
// 認可コードはサーバー側で数分しか有効でないため、タイムアウトは設けず
// コード期限切れを失敗として表面化させる。
type Flow struct {
	client      *Client
	store       CredentialStore
	in          io.Reader
	out         io.Writer
	maxAttempts int
	logger      *slog.Logger
}

// NewFlow はFlowを生成する。
// inは運用者の入力元（通常os.Stdin）、outは案内の出力先（通常os.Stdout）。
func NewFlow(client *Client, store CredentialStore, in io.Reader, out io.Writer, maxAttempts int, logger *slog.Logger) *Flow {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		client:      client,
		store:       store,
		in:          in,
		out:         out,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ExtractSessionTokenCode はコールバックURLから認可コードを抽出する。
// 形式が不正な場合はエラーを返す（呼び出し側でリトライ可能）。
func ExtractSessionTokenCode(callbackURL string) (string, error) {
	m := sessionTokenCodePattern.FindStringSubmatch(callbackURL)
	if m == nil {
		return "", fmt.Errorf("URLにsession_token_codeパラメータが含まれていません")
	}
	return m[1], nil
}

// Run は対話認証フローを最初から実行する。
// 成功した各トークン交換の直後にCredentialStoreへ保存するため、
// アクセストークン交換で失敗してもセッショントークンは残り、
// 次回はサイレントリフレッシュから再開できる。
func (f *Flow) Run(ctx context.Context) (*CredentialBundle, error) {
	pkce, err := GeneratePKCE()
	if err != nil {
		return nil, model.NewAuthenticationFailedError("PKCEペアの生成に失敗", err)
	}

	authorizeURL := f.client.BuildAuthorizeURL(pkce.Challenge)

	fmt.Fprintln(f.out, "注意: 認証リンクの有効期限は短いため、5分以内に操作を完了してください。")
	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, "1. ブラウザで以下のURLを開いてください:")
	fmt.Fprintln(f.out, authorizeURL)
	fmt.Fprintln(f.out, "2. 任天堂アカウントでログインしてください")
	fmt.Fprintln(f.out, "3. 「この人にする」ボタンを右クリックしてリンクをコピーしてください")
	fmt.Fprintf(f.out, "4. コピーしたリンクをここに貼り付けてください（%q で中断）:\n", skipKeyword)

	reader := bufio.NewReader(f.in)

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		line, readErr := f.readLine(ctx, reader)
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, model.NewAuthenticationFailedError("認証フローが中断されました", ctxErr)
			}
			return nil, model.NewAuthenticationFailedError("入力の読み取りに失敗", readErr)
		}

		input := strings.TrimSpace(line)
		if strings.EqualFold(input, skipKeyword) {
			return nil, model.NewAuthenticationFailedError("運用者が認証をスキップしました", nil)
		}

		code, extractErr := ExtractSessionTokenCode(input)
		if extractErr != nil {
			if attempt < f.maxAttempts {
				fmt.Fprintf(f.out, "URLの形式が正しくありません。再入力してください (試行 %d/%d):\n", attempt, f.maxAttempts)
				continue
			}
			return nil, model.NewAuthenticationFailedError(
				fmt.Sprintf("リトライ上限（%d回）に達しました", f.maxAttempts), extractErr)
		}

		return f.exchange(ctx, code, pkce.Verifier)
	}

	return nil, model.NewAuthenticationFailedError(
		fmt.Sprintf("リトライ上限（%d回）に達しました", f.maxAttempts), nil)
}

// readLine は1行の入力をコンテキストキャンセルと競合させて読み取る。
// 標準入力のReadは割り込めないため別goroutineで行い、キャンセル時は
// 読み取り結果を待たずに制御を返す（SIGINTで運用者が即座に抜けられるように）。
func (f *Flow) readLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	type readResult struct {
		line string
		err  error
	}

	ch := make(chan readResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.err != io.EOF {
			return "", res.err
		}
		return res.line, nil
	}
}

// exchange は認可コードをセッショントークン、続いてアクセストークンに交換する。
// トークンを得た各遷移の直後に永続化する。
func (f *Flow) exchange(ctx context.Context, code, verifier string) (*CredentialBundle, error) {
	sessionToken, err := f.client.ExchangeSessionTokenCode(ctx, code, verifier)
	if err != nil {
		fmt.Fprintln(f.out, "認可コードが期限切れの可能性があります。再度実行して新しいリンクを取得してください。")
		return nil, err
	}

	bundle := &CredentialBundle{SessionToken: sessionToken}
	if err := f.store.Save(bundle); err != nil {
		return nil, fmt.Errorf("セッショントークンの保存に失敗しました: %w", err)
	}
	f.logger.Info("セッショントークンを取得しました")

	token, expiresAt, err := f.client.ExchangeAccessToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	bundle = bundle.WithAccessToken(token, expiresAt)
	if err := f.store.Save(bundle); err != nil {
		return nil, fmt.Errorf("アクセストークンの保存に失敗しました: %w", err)
	}
	f.logger.Info("アクセストークンを取得しました", slog.Time("expires_at", expiresAt))

	fmt.Fprintln(f.out, "認証が完了しました。トークンを保存しました。")
	return bundle, nil
}
