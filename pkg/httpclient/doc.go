// Package httpclient は内部サービス間のJSON通信用HTTPクライアントを提供する。
//
// orderサービスがrestaurantサービスへ注文対象レストランの存在確認を行う際など、
// gatewayを経由しないサービス間呼び出しで使用する。
package httpclient
