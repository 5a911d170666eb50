// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。全ての受信リクエストを宣言的なルートテーブルと照合し、
// ルートごとの認証・認可ポリシーを適用した上で、識別ヘッダーを付与して
// 内部サービスへ転送する。
//
// 1リクエストの処理は ルート照合 → 認証 → 認可 → 転送 の直線的な
// パイプラインであり、各段の失敗は即座にパイプラインを打ち切る。
// ルートテーブルは起動時に一度だけ構築される不変データで、
// リクエスト間で共有される可変状態は存在しない。
package gateway
