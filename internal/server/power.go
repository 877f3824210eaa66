package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/metrics"
)

// applyPower 在主循环中处理电源事件
// 休眠时本机用户下线，唤醒时恢复休眠前的状态；关机事件触发服务关闭
func (s *Server) applyPower(ev protocol.PowerEvent) error {
	me := s.state.Account.FriendKey()

	switch ev {
	case protocol.PowerSleepRequested:
		// 不阻止休眠
	case protocol.PowerGoingToSleep:
		if s.state.Sleep() {
			s.queue.Push(protocol.NotifyUserWentOffline, me)
		}
	case protocol.PowerFullyWakingUp:
		if s.state.Wake() {
			s.queue.Push(protocol.NotifyUserWentOnline, me)
		}
	case protocol.PowerTermination:
		logger.Info("termination requested, shutting down")
		s.cancel()
	default:
		return fmt.Errorf("unknown power event 0x%X", uint32(ev))
	}

	metrics.PowerEvents.WithLabelValues(ev.String()).Inc()
	logger.Info("power event applied",
		zap.String("event", ev.String()),
		zap.String("login", s.state.Login.String()),
	)
	return nil
}
