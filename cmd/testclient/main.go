// Package main 提供 frd 服务测试客户端
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/qiminjie89/frdsvc/internal/client"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// 配置
var (
	transportType = pflag.String("transport", "unix", "transport: unix or websocket")
	serverAddr    = pflag.String("addr", "/tmp/frd.sock", "server address (socket path, or host:port for websocket)")
	service       = pflag.String("service", protocol.ServiceFrdU, "service to connect to")
	script        = pflag.String("script", "", "semicolon separated commands, e.g. \"attach 0x20; login 0x10; events\"")
	interactive   = pflag.BoolP("interactive", "i", false, "read commands from stdin")
	listen        = pflag.Bool("listen", false, "stay connected and print signals until interrupted")
	timeout       = pflag.Duration("timeout", 5*time.Second, "per-command timeout")

	intakeAddr   = pflag.String("intake-grpc", "127.0.0.1:9090", "notification intake gRPC address")
	intakeToken  = pflag.String("token", "", "JWT for the intake gRPC service")
	kafkaBrokers = pflag.StringSlice("kafka-brokers", nil, "push through Kafka instead of gRPC")
	kafkaTopic   = pflag.String("kafka-topic", "frd-notifications", "intake Kafka topic")

	loadTest = pflag.Bool("load", false, "run a session load test instead of a script")
)

func main() {
	pflag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if *loadTest {
		runLoadTest()
		return
	}

	log.Printf("Starting test client...")
	log.Printf("  Server: %s (%s)", *serverAddr, *transportType)
	log.Printf("  Service: %s", *service)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	c, err := client.Dial(ctx, *transportType, *serverAddr, *service)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()

	log.Printf("Connected, slot=%d", c.Slot())

	sh := newShell(c)
	defer sh.close()

	go printSignals(c)

	switch {
	case *interactive:
		sh.interactive()
	case *script != "":
		for _, line := range strings.Split(*script, ";") {
			if err := sh.exec(line); err != nil {
				log.Fatalf("%s: %v", strings.TrimSpace(line), err)
			}
		}
	}

	if *listen {
		// 信号处理
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		log.Printf("Listening for signals. Press Ctrl+C to exit.")
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v, shutting down...", sig)
		case <-c.Done():
			log.Printf("Connection closed by server: %v", c.Err())
		}
	}
}

// printSignals 打印服务端触发的事件信号
func printSignals(c *client.Client) {
	for h := range c.Signals() {
		log.Printf("[SIGNAL] handle=0x%X", h)
	}
}

// parseUint 支持 0x 前缀的整数参数
func parseUint(s string, bits int) (uint64, error) {
	var v uint64
	_, err := fmt.Sscan(s, &v)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if bits < 64 && v >= 1<<bits {
		return 0, fmt.Errorf("%q out of range", s)
	}
	return v, nil
}
