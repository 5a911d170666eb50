// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、およびgatewayが注入する識別ヘッダー
// （X-User-Id / X-User-Role）の読み取りを含む。トークンの検証はgateway
// サービスのみが行い、内部サービスはgatewayが設定した識別ヘッダーを信頼する。
package middleware
