package client

import (
	"fmt"

	"macroprox/game"
	"macroprox/protocol"
)

// Apply 把一条服务端消息写入本地状态。
// 本地玩家的位置由预测维护，MovedPlayers 不会覆盖它。
func Apply(st *game.State, m protocol.Message) error {
	switch m := m.(type) {
	case protocol.SendMap:
		if err := st.SetBuildings(m.Buildings); err != nil {
			return fmt.Errorf("apply SendMap: %w", err)
		}
	case protocol.SendPlayerInfo:
		st.ReplacePlayers(m.Players)
		st.SetOwn(m.YourID)
	case protocol.AllowClientReady:
		if own := st.Own(); own != m.ID {
			return fmt.Errorf("apply AllowClientReady: id %d does not match own id %d", m.ID, own)
		}
		if err := st.MarkReady(); err != nil {
			return fmt.Errorf("apply AllowClientReady: %w", err)
		}
	case protocol.MovedPlayers:
		for _, pp := range m.Players {
			st.MergeRemote(pp.ID, pp.Position)
		}
	case protocol.AddPlayer:
		if m.Player.ID == st.Own() {
			return nil
		}
		st.AddPlayer(m.Player)
	case protocol.RemovePlayer:
		st.RemovePlayer(m.ID)
	default:
		// 客户端→服务端方向的消息，不应出现在这里
	}
	return nil
}
