package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/qiminjie89/frdsvc/internal/client"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// 负载测试：按服务轮流建立会话，持续发送查询命令
// 超出服务会话上限的连接应被 ResultOutOfSessions 拒绝并计入 refused

var (
	numClients  = pflag.Int("clients", 16, "number of concurrent sessions (load test)")
	rampUp      = pflag.Duration("rampup", 2*time.Second, "ramp-up duration (load test)")
	duration    = pflag.Duration("duration", 30*time.Second, "test duration after ramp-up (load test)")
	msgInterval = pflag.Duration("msg-interval", 100*time.Millisecond, "command interval per session (load test)")
)

// Stats 统计
type Stats struct {
	connected    int64
	refused      int64
	disconnected int64
	calls        int64
	signals      int64
	errors       int64
}

var stats Stats

func runLoadTest() {
	log.Printf("Starting load test...")
	log.Printf("  Server: %s (%s)", *serverAddr, *transportType)
	log.Printf("  Clients: %d", *numClients)
	log.Printf("  Ramp-up: %s", *rampUp)
	log.Printf("  Duration: %s", *duration)

	ctx, cancel := context.WithCancel(context.Background())

	// 信号处理
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("Shutting down...")
		cancel()
	}()

	// 启动统计输出
	go statsLoop(ctx)

	services := []string{protocol.ServiceFrdU, protocol.ServiceFrdA}
	interval := *rampUp / time.Duration(max(*numClients, 1))

	var wg sync.WaitGroup

starting:
	for i := 0; i < *numClients; i++ {
		select {
		case <-ctx.Done():
			break starting
		default:
		}

		wg.Add(1)
		go func(svc string) {
			defer wg.Done()
			runSession(ctx, svc)
		}(services[i%len(services)])

		time.Sleep(interval)
	}

	log.Printf("All sessions started. Running for %s...", *duration)

	select {
	case <-ctx.Done():
	case <-time.After(*duration):
		log.Printf("Test duration completed.")
		cancel()
	}

	wg.Wait()
	printFinalStats()
}

func runSession(ctx context.Context, svc string) {
	dialCtx, cancel := context.WithTimeout(ctx, *timeout)
	c, err := client.Dial(dialCtx, *transportType, *serverAddr, svc)
	cancel()
	if err != nil {
		if errors.Is(err, protocol.ResultOutOfSessions) {
			atomic.AddInt64(&stats.refused, 1)
		} else {
			atomic.AddInt64(&stats.errors, 1)
		}
		return
	}
	defer c.Close()

	atomic.AddInt64(&stats.connected, 1)
	defer func() {
		atomic.AddInt64(&stats.connected, -1)
		atomic.AddInt64(&stats.disconnected, 1)
	}()

	// 登记通知事件并统计收到的信号
	if err := c.AttachToEventNotification(ctx, 0x20); err != nil {
		atomic.AddInt64(&stats.errors, 1)
		return
	}
	go func() {
		for range c.Signals() {
			atomic.AddInt64(&stats.signals, 1)
		}
	}()

	ticker := time.NewTicker(*msgInterval + time.Duration(rand.Intn(50))*time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			atomic.AddInt64(&stats.errors, 1)
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, *timeout)
			var err error
			switch rand.Intn(3) {
			case 0:
				_, err = c.HasLoggedIn(callCtx)
			case 1:
				_, err = c.GetFriendKeyList(callCtx, 0, 100)
			default:
				_, _, err = c.GetEventNotification(callCtx, 16)
			}
			cancel()
			if err != nil && ctx.Err() == nil {
				atomic.AddInt64(&stats.errors, 1)
				continue
			}
			atomic.AddInt64(&stats.calls, 1)
		}
	}
}

func statsLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Stats: connected=%d refused=%d calls=%d signals=%d errors=%d",
				atomic.LoadInt64(&stats.connected),
				atomic.LoadInt64(&stats.refused),
				atomic.LoadInt64(&stats.calls),
				atomic.LoadInt64(&stats.signals),
				atomic.LoadInt64(&stats.errors),
			)
		}
	}
}

func printFinalStats() {
	log.Printf("=== Final Stats ===")
	log.Printf("  Refused: %d", atomic.LoadInt64(&stats.refused))
	log.Printf("  Disconnected: %d", atomic.LoadInt64(&stats.disconnected))
	log.Printf("  Calls: %d", atomic.LoadInt64(&stats.calls))
	log.Printf("  Signals: %d", atomic.LoadInt64(&stats.signals))
	log.Printf("  Errors: %d", atomic.LoadInt64(&stats.errors))
}
