// Package token はJWTベースの認証トークンの発行と検証を提供する。
//
// userサービスがログイン時にトークンを発行し、gatewayサービスが
// リクエスト受付時に検証する。検証は共有秘密鍵によるローカルな
// 暗号計算のみで完結し、外部への問い合わせは行わない。
package token
