// Package server 是 Pong 伺服器的網路層與編排迴圈。
//
// # 傳輸層
//
// 同一套訊息協定跑在兩種傳輸上：
//   - TCP：記錄首尾相接，沒有長度前綴，由 protocol.Decoder 從位元組串流切出完整記錄
//   - WebSocket（GET /ws）：每筆記錄一個 frame；JSON 用 text frame，MessagePack 用 binary frame
//
// 每條連線有兩個 goroutine：
//   - readPump：讀取 → 解碼 → dispatch，直到讀取失敗或收到 DISCONNECT
//   - writePump：把發送佇列寫到傳輸層；WebSocket 另外每 54 秒送一次 ping
//
// 發送佇列有上限，滿了就丟棄該則訊息；GAME_STATE 每個 tick 都會重送。
//
// # 編排迴圈
//
// Loop 以固定頻率推進所有 active 房間，細節見 Loop 的說明。
// 房間各自持有鎖，迴圈不持有管理器的鎖推進房間。
//
// # HTTP 端點
//
//	GET /health  健康檢查
//	GET /stats   房間、連線統計
//	GET /ws      WebSocket 升級
//
// # 使用範例
//
//	cfg := config.Default()
//	manager := room.NewManager(cfg.RoomConfig(), logger, events.Nop{})
//	srv, err := server.New(cfg, manager, logger)
//	if err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
package server
