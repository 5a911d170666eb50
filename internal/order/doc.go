// Package order は注文サービスの内部実装を提供する。
//
// 注文の作成から配達完了までのライフサイクル管理、配達パートナーへの
// 割り当て、決済レコードの管理を担当する。注文ステータスは定義された
// 遷移規則に従ってのみ変更できる。注文作成時はrestaurantサービスへ
// 問い合わせてレストランの存在を検証する。
package order
