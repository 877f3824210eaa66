package frd

// WiFiConnectionStatus 无线连接状态
type WiFiConnectionStatus uint8

const (
	WiFiIdle          WiFiConnectionStatus = 0
	WiFiConnecting    WiFiConnectionStatus = 1
	WiFiConnected     WiFiConnectionStatus = 2
	WiFiDisconnecting WiFiConnectionStatus = 3
)

// AccessPoint 接入点控制器
type AccessPoint interface {
	QuickConnect() error
	Disconnect() error
}

// StubAccessPoint 总是成功的接入点
type StubAccessPoint struct{}

// QuickConnect 连接
func (StubAccessPoint) QuickConnect() error { return nil }

// Disconnect 断开
func (StubAccessPoint) Disconnect() error { return nil }

// WiFi frd:n 无线状态机
type WiFi struct {
	NdmState    uint8
	Status      WiFiConnectionStatus
	AccessPoint AccessPoint
}

// WiFiState 由 ndm 状态与连接状态得到对外的状态值 0..3
func WiFiState(ndmState uint8, status WiFiConnectionStatus) uint32 {
	switch {
	case ndmState <= 1 && (status == WiFiConnecting || status == WiFiConnected || status == WiFiDisconnecting):
		return 2
	case ndmState == 2 && status == WiFiIdle:
		return 1
	case ndmState == 2:
		return 0
	default:
		return 3
	}
}

// State 当前状态值
func (w *WiFi) State() uint32 {
	return WiFiState(w.NdmState, w.Status)
}

// setWiFiStatus 切换连接状态，状态值变化时触发事件
func (s *ServiceState) setWiFiStatus(next WiFiConnectionStatus) {
	w := &s.WiFi
	if w.Status == next {
		return
	}
	old := w.State()
	w.Status = next
	if w.State() != old {
		s.WiFiEvent.Signal()
	}
}

// ConnectWiFi 连接无线
func (s *ServiceState) ConnectWiFi() error {
	w := &s.WiFi
	origNdm := w.NdmState
	w.NdmState = 2

	if w.Status == WiFiIdle {
		s.setWiFiStatus(WiFiConnecting)
		if err := w.AccessPoint.QuickConnect(); err != nil {
			s.setWiFiStatus(WiFiIdle)
			return err
		}
		s.setWiFiStatus(WiFiConnected)
		return nil
	}

	if origNdm != 2 {
		s.WiFiEvent.Signal()
	}
	return nil
}

// DisconnectWiFi 断开无线，next 为调用方给出的 ndm 状态（bit 0 取反后保存）
func (s *ServiceState) DisconnectWiFi(next uint8) error {
	w := &s.WiFi
	status := w.Status
	origNdm := w.NdmState
	w.NdmState = next ^ 1

	if status == WiFiConnected {
		s.setWiFiStatus(WiFiDisconnecting)
		if err := w.AccessPoint.Disconnect(); err != nil {
			return err
		}
		s.setWiFiStatus(WiFiIdle)
	} else if origNdm == 2 {
		s.WiFiEvent.Signal()
	}
	return nil
}
