// Package restaurant はレストランサービスの内部実装を提供する。
//
// レストランとメニューのCRUD、および公開向けの店舗一覧・詳細の提供を
// 担当する。詳細取得はRedisによるリードスルーキャッシュを持ち、
// 更新・削除時にキャッシュを無効化する。Redisが利用できない場合は
// データベース直読みへ縮退する。
package restaurant
