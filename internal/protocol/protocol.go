// Package protocol 定義伺服器與展示客戶端之間的訊息協定
//
// 每一則訊息都是一筆自我描述的記錄（type 標籤 + data 負載），
// 多筆記錄在同一條雙向位元組流上首尾相接，沒有長度前綴。
// 接收端使用 Decoder 做串流式、可重入的解碼（處理黏包與半包）。
//
// 訊息集合是封閉的 tagged union：每一種 Type 對應一個負載結構，
// 解碼時依標籤驗證負載形狀；未知標籤與不合法負載一律丟棄，不會讓連線失敗。
package protocol

// Type 訊息類型標籤
type Type string

const (
	TypeConnect    Type = "CONNECT"    // client → server：加入配對
	TypeAIMode     Type = "AI_MODE"    // client → server：與電腦對戰
	TypePlayerID   Type = "PLAYER_ID"  // server → client：分配到的位置
	TypeWait       Type = "WAIT"       // server → client：等待對手
	TypeReady      Type = "READY"      // 雙向：房間已滿 / 客戶端確認
	TypeInput      Type = "INPUT"      // client → server：按鍵狀態改變
	TypeGameState  Type = "GAME_STATE" // server → client：每個 tick 的快照
	TypeGameOver   Type = "GAME_OVER"  // server → client：比賽結束
	TypePlayAgain  Type = "PLAY_AGAIN" // client → server：請求再來一局
	TypeRestart    Type = "RESTART"    // server → client：新一局開始
	TypeDisconnect Type = "DISCONNECT" // 雙向：離線通知
)

// 電腦難度
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Message 所有訊息負載的共同介面
type Message interface {
	Type() Type
}

// Connect 加入真人配對
type Connect struct{}

// AIMode 請求與電腦對戰
type AIMode struct {
	Difficulty string `json:"difficulty"`
}

// PlayerID 告知客戶端所在位置（1 左、2 右）
type PlayerID struct {
	ID int `json:"id"`
}

// Wait 房間尚未滿員
type Wait struct {
	Message string `json:"message,omitempty"`
}

// Ready 伺服器通知房間已滿；客戶端回送同一則訊息表示準備完成
type Ready struct{}

// Input 玩家目前的按鍵狀態
type Input struct {
	MoveUp   bool `json:"move_up"`
	MoveDown bool `json:"move_down"`
}

// BallSnapshot 球的快照
type BallSnapshot struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// PaddleSnapshot 球拍的快照
type PaddleSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GameState 完整的模擬快照
//
// Winner 為 0 表示尚未分出勝負。
type GameState struct {
	Ball     BallSnapshot   `json:"ball"`
	Paddle1  PaddleSnapshot `json:"paddle1"`
	Paddle2  PaddleSnapshot `json:"paddle2"`
	Score1   int            `json:"score1"`
	Score2   int            `json:"score2"`
	GameOver bool           `json:"game_over"`
	Winner   int            `json:"winner"`
	Tick     int            `json:"tick"`
}

// GameOver 比賽結束
type GameOver struct {
	Winner int `json:"winner"`
}

// PlayAgain 請求再來一局
type PlayAgain struct{}

// Restart 新一局開始
type Restart struct{}

// Disconnect 離線通知
type Disconnect struct{}

func (Connect) Type() Type    { return TypeConnect }
func (AIMode) Type() Type     { return TypeAIMode }
func (PlayerID) Type() Type   { return TypePlayerID }
func (Wait) Type() Type       { return TypeWait }
func (Ready) Type() Type      { return TypeReady }
func (Input) Type() Type      { return TypeInput }
func (GameState) Type() Type  { return TypeGameState }
func (GameOver) Type() Type   { return TypeGameOver }
func (PlayAgain) Type() Type  { return TypePlayAgain }
func (Restart) Type() Type    { return TypeRestart }
func (Disconnect) Type() Type { return TypeDisconnect }

// ClientOriginated 回報此類型是否可能由客戶端送出
//
// 伺服器分派前以此過濾，其餘類型一律忽略。
func ClientOriginated(t Type) bool {
	switch t {
	case TypeConnect, TypeAIMode, TypeReady, TypeInput, TypePlayAgain, TypeDisconnect:
		return true
	}
	return false
}

// ValidDifficulty 檢查難度字串
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}
