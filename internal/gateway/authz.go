package gateway

import (
	"errors"

	"github.com/shokutaku/demae/pkg/token"
)

// errForbidden は認証済みだがロールが許可されていないことを表す。
var errForbidden = errors.New("ロールが許可されていない")

// authorize は認証済みIdentityのロールをルールの許可ロール集合と照合する。
// 許可ロール集合が空のルールは「認証済みなら誰でも」であり常に通過する。
// 比較は大文字小文字を区別する完全一致で、ロール階層は存在しない。
func authorize(id token.Identity, rule *compiledRule) error {
	if rule.roles == nil {
		return nil
	}
	if _, ok := rule.roles[id.Role]; !ok {
		return errForbidden
	}
	return nil
}
