package gateway

import (
	"fmt"
	"strings"

	"github.com/shokutaku/demae/pkg/token"
)

// Rule は1種類のルーティング対象リクエストを表す宣言的なルール。
// 全フィールドはプレーンなデータであり、テーブル構築後は変更されない。
type Rule struct {
	// ID はルールの一意なラベル。診断用途にのみ使用する。
	ID string
	// Pattern はURLパスに対するパターン。リテラルセグメント、
	// {name}形式の名前付きキャプチャ、*（任意の1セグメント）、
	// 末尾の/**（残り全セグメント）をサポートする。
	Pattern string
	// Methods はこのルールが一致するHTTPメソッドの集合。空なら全メソッド。
	Methods []string
	// RequiresAuth は認証を必須とするかどうか。
	RequiresAuth bool
	// AllowedRoles は許可するロールの集合。空集合かつRequiresAuth=trueは
	// 「認証済みなら誰でも」を意味する。ロール階層は存在しないため、
	// 管理者アクセスを許すルートは明示的にADMINを列挙する。
	AllowedRoles []string
	// Upstream は転送先の論理サービス名。Resolverが実アドレスへ解決する。
	Upstream string
	// Rewrite はupstreamへのパス書き換えテンプレート。{name}キャプチャを
	// 置換する。空の場合は先頭セグメント（/api）を取り除く。
	Rewrite string
}

// segmentKind はパターンセグメントの種別。
type segmentKind int

const (
	// segLiteral は完全一致するリテラルセグメント。
	segLiteral segmentKind = iota
	// segCapture は任意の1セグメントに一致し、名前付きで捕捉する。
	segCapture
	// segWildcard は任意の1セグメントに一致する（捕捉なし）。
	segWildcard
)

// segment はコンパイル済みパターンの1セグメント。
type segment struct {
	kind segmentKind
	// value はsegLiteralならリテラル値、segCaptureならキャプチャ名。
	value string
}

// compiledRule は照合用に前処理されたルール。
type compiledRule struct {
	Rule
	// segments はパスセグメントごとの照合規則。
	segments []segment
	// matchRest は末尾/**により残り全セグメントに一致するかどうか。
	matchRest bool
	// methods は照合用のメソッド集合。nilなら全メソッド。
	methods map[string]struct{}
	// roles は照合用の許可ロール集合。
	roles map[string]struct{}
}

// match は照合に成功した1リクエスト分の結果。
type match struct {
	rule *compiledRule
	// params はパターンの名前付きキャプチャが捕捉した値。
	params map[string]string
}

// Table は優先順位付きの不変なルートテーブル。
// 起動時に一度だけ構築され、以後は任意個の並行リーダーから安全に参照できる。
type Table struct {
	rules []*compiledRule
}

// NewTable はルール列からルートテーブルを構築する。
// テーブル順がそのまま優先順位となるため、呼び出し側はより具体的な
// ルール（リテラルパス）をワイルドカードより先に並べること。
// パターン不正・未知のロール・ID重複は起動時エラーとする。
func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	compiled := make([]*compiledRule, 0, len(rules))

	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("ルールIDが空: pattern=%s", r.Pattern)
		}
		if _, ok := seen[r.ID]; ok {
			return nil, fmt.Errorf("ルールIDが重複: %s", r.ID)
		}
		seen[r.ID] = struct{}{}

		if r.Upstream == "" {
			return nil, fmt.Errorf("ルール %s: upstreamが未指定", r.ID)
		}
		if len(r.AllowedRoles) > 0 && !r.RequiresAuth {
			return nil, fmt.Errorf("ルール %s: ロール制限には認証が必須", r.ID)
		}
		for _, role := range r.AllowedRoles {
			if !token.ValidRole(role) {
				return nil, fmt.Errorf("ルール %s: 未知のロール %q", r.ID, role)
			}
		}

		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("ルール %s: %w", r.ID, err)
		}
		compiled = append(compiled, cr)
	}

	return &Table{rules: compiled}, nil
}

// compileRule はパターン文字列をセグメント列へ前処理する。
func compileRule(r Rule) (*compiledRule, error) {
	if !strings.HasPrefix(r.Pattern, "/") {
		return nil, fmt.Errorf("パターンは/で始まる必要がある: %q", r.Pattern)
	}

	cr := &compiledRule{Rule: r}

	parts := splitPath(r.Pattern)
	captures := make(map[string]struct{})
	for i, p := range parts {
		switch {
		case p == "**":
			if i != len(parts)-1 {
				return nil, fmt.Errorf("**は末尾セグメントでのみ使用できる: %q", r.Pattern)
			}
			cr.matchRest = true
		case p == "*":
			cr.segments = append(cr.segments, segment{kind: segWildcard})
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			name := p[1 : len(p)-1]
			if name == "" {
				return nil, fmt.Errorf("キャプチャ名が空: %q", r.Pattern)
			}
			captures[name] = struct{}{}
			cr.segments = append(cr.segments, segment{kind: segCapture, value: name})
		case p == "":
			return nil, fmt.Errorf("空のセグメントを含むパターン: %q", r.Pattern)
		default:
			cr.segments = append(cr.segments, segment{kind: segLiteral, value: p})
		}
	}

	// 書き換えテンプレートが参照するキャプチャの存在を起動時に確認する
	for _, name := range templateCaptures(r.Rewrite) {
		if _, ok := captures[name]; !ok {
			return nil, fmt.Errorf("書き換えテンプレートが未定義のキャプチャ{%s}を参照: %q", name, r.Rewrite)
		}
	}

	if len(r.Methods) > 0 {
		cr.methods = make(map[string]struct{}, len(r.Methods))
		for _, m := range r.Methods {
			cr.methods[strings.ToUpper(m)] = struct{}{}
		}
	}
	if len(r.AllowedRoles) > 0 {
		cr.roles = make(map[string]struct{}, len(r.AllowedRoles))
		for _, role := range r.AllowedRoles {
			cr.roles[role] = struct{}{}
		}
	}

	return cr, nil
}

// Match はメソッドとパスに一致する最初のルールを返す。
// テーブルは不変であるため、同じ入力に対する結果は常に同一となる。
func (t *Table) Match(method, path string) (match, bool) {
	parts := splitPath(path)
	for _, cr := range t.rules {
		if params, ok := cr.matchPath(method, parts); ok {
			return match{rule: cr, params: params}, true
		}
	}
	return match{}, false
}

// matchPath は1ルールに対する照合を行い、捕捉したセグメントを返す。
func (cr *compiledRule) matchPath(method string, parts []string) (map[string]string, bool) {
	if cr.methods != nil {
		if _, ok := cr.methods[method]; !ok {
			return nil, false
		}
	}

	if cr.matchRest {
		if len(parts) < len(cr.segments) {
			return nil, false
		}
	} else if len(parts) != len(cr.segments) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range cr.segments {
		switch seg.kind {
		case segLiteral:
			if parts[i] != seg.value {
				return nil, false
			}
		case segCapture:
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.value] = parts[i]
		case segWildcard:
			// 任意の1セグメントに一致
		}
	}
	return params, true
}

// rewritePath は受信パスをupstream向けのパスへ書き換える。
// Rewriteが空の場合はgateway用の先頭セグメントを取り除き、
// 指定されている場合は{name}を捕捉値で置換したテンプレートを返す。
func (cr *compiledRule) rewritePath(path string, params map[string]string) string {
	if cr.Rewrite == "" {
		return stripFirstSegment(path)
	}
	rewritten := cr.Rewrite
	for name, value := range params {
		rewritten = strings.ReplaceAll(rewritten, "{"+name+"}", value)
	}
	return rewritten
}

// splitPath はURLパスをセグメント列へ分割する。末尾スラッシュは無視する。
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// stripFirstSegment は先頭の1セグメントを取り除いたパスを返す。
func stripFirstSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		return trimmed[i:]
	}
	return "/"
}

// templateCaptures は書き換えテンプレート内の{name}参照を列挙する。
func templateCaptures(template string) []string {
	var names []string
	rest := template
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			return names
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return names
		}
		names = append(names, rest[start+1:start+end])
		rest = rest[start+end+1:]
	}
}
