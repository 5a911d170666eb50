// Package user はユーザーサービスの内部実装を提供する。
//
// ユーザー登録・ログイン（JWT発行）・プロフィール管理・管理者向けの
// ユーザー管理を担当する。認証トークンの検証はgatewayが行うため、
// このサービスはgatewayが注入した識別ヘッダーのみを信頼する。
package user
