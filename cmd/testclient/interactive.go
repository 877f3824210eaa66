package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/qiminjie89/frdsvc/internal/client"
	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/config"
	"github.com/qiminjie89/frdsvc/pkg/kafka"
)

// shell 执行测试命令
type shell struct {
	c        *client.Client
	intake   *client.IntakeClient
	producer *kafka.Producer
}

func newShell(c *client.Client) *shell {
	return &shell{c: c}
}

func (sh *shell) close() {
	if sh.intake != nil {
		sh.intake.Close()
	}
	if sh.producer != nil {
		sh.producer.Close()
	}
}

// interactive 交互式命令循环
func (sh *shell) interactive() {
	log.Printf("Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "quit", "exit":
			log.Printf("Bye!")
			return
		default:
			if err := sh.exec(line); err != nil {
				log.Printf("Error: %v", err)
			}
		}
		fmt.Print("> ")
	}
}

func printHelp() {
	fmt.Println(`
Commands:
  help                        - Show this help
  status                      - HasLoggedIn
  login <handle>              - Login, server signals <handle>
  logout                      - Logout
  mykey                       - GetMyFriendKey
  friends [offset] [max]      - GetFriendKeyList
  attach <handle>             - AttachToEventNotification
  mask <mask>                 - SetNotificationMask
  events [max]                - GetEventNotification
  fc <principal_id>           - PrincipalIDToFriendCode
  wifi                        - GetWiFiState (frd:n)
  wifi-connect                - ConnectToWiFi (frd:n)
  raw <hex>                   - Send a raw command buffer
  push <kind> <principal_id>  - Push a notification through the intake
  power <event>               - Send a power event through the intake
  sleep <duration>            - Wait
  quit                        - Exit

Examples:
  attach 0x20
  login 0x10
  push 3 0xaabbccdd
  events 8`)
}

func (sh *shell) exec(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd, args := parts[0], parts[1:]

	arg := func(i int, def uint64, bits int) (uint64, error) {
		if i >= len(args) {
			return def, nil
		}
		return parseUint(args[i], bits)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "help":
		printHelp()

	case "status":
		online, err := sh.c.HasLoggedIn(ctx)
		if err != nil {
			return err
		}
		log.Printf("logged_in=%v", online)

	case "login":
		h, err := arg(0, 0x10, 32)
		if err != nil {
			return err
		}
		if err := sh.c.Login(ctx, uint32(h)); err != nil {
			return err
		}
		log.Printf("login ok")

	case "logout":
		if err := sh.c.Logout(ctx); err != nil {
			return err
		}
		log.Printf("logout ok")

	case "mykey":
		key, err := sh.c.GetMyFriendKey(ctx)
		if err != nil {
			return err
		}
		log.Printf("principal_id=0x%08X friend_code=%012d", key.PrincipalID, key.LocalFriendCode)

	case "friends":
		offset, err := arg(0, 0, 32)
		if err != nil {
			return err
		}
		maxCount, err := arg(1, 100, 32)
		if err != nil {
			return err
		}
		keys, err := sh.c.GetFriendKeyList(ctx, uint32(offset), uint32(maxCount))
		if err != nil {
			return err
		}
		log.Printf("%d friends", len(keys))
		for _, k := range keys {
			log.Printf("  principal_id=0x%08X friend_code=%012d", k.PrincipalID, k.LocalFriendCode)
		}

	case "attach":
		h, err := arg(0, 0x20, 32)
		if err != nil {
			return err
		}
		if err := sh.c.AttachToEventNotification(ctx, uint32(h)); err != nil {
			return err
		}
		log.Printf("attached handle 0x%X", h)

	case "mask":
		m, err := arg(0, 0, 32)
		if err != nil {
			return err
		}
		return sh.c.SetNotificationMask(ctx, uint32(m))

	case "events":
		n, err := arg(0, 16, 8)
		if err != nil {
			return err
		}
		events, missed, err := sh.c.GetEventNotification(ctx, int(n))
		if err != nil {
			return err
		}
		log.Printf("%d events, missed=%v", len(events), missed)
		for _, ev := range events {
			log.Printf("  %s principal_id=0x%08X", ev.Kind, ev.Friend.PrincipalID)
		}

	case "fc":
		pid, err := arg(0, 0, 32)
		if err != nil {
			return err
		}
		fc, err := sh.c.PrincipalIDToFriendCode(ctx, uint32(pid))
		if err != nil {
			return err
		}
		log.Printf("friend_code=%012d", fc)

	case "wifi":
		state, err := sh.c.GetWiFiState(ctx)
		if err != nil {
			return err
		}
		log.Printf("wifi_state=%d", state)

	case "wifi-connect":
		return sh.c.ConnectToWiFi(ctx)

	case "raw":
		if len(args) == 0 {
			return fmt.Errorf("usage: raw <hex>")
		}
		raw, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return err
		}
		out, err := sh.c.CallRaw(ctx, raw)
		if err != nil {
			return err
		}
		printResponse(out)

	case "push":
		kind, err := arg(0, uint64(protocol.NotifyFriendWentOnline), 8)
		if err != nil {
			return err
		}
		pid, err := arg(1, 0, 32)
		if err != nil {
			return err
		}
		return sh.push(ctx, &protocol.PushNotificationRequest{
			Kind:        uint8(kind),
			PrincipalID: uint32(pid),
			Source:      "testclient",
		})

	case "power":
		ev, err := arg(0, 0, 32)
		if err != nil {
			return err
		}
		return sh.power(ctx, &protocol.PowerEventRequest{Event: uint32(ev), Source: "testclient"})

	case "sleep":
		d, err := time.ParseDuration(strings.Join(args, ""))
		if err != nil {
			return err
		}
		time.Sleep(d)

	default:
		return fmt.Errorf("unknown command %q, type 'help' for usage", cmd)
	}
	return nil
}

func printResponse(raw []byte) {
	resp, err := ipc.DecodeResponse(raw)
	if err != nil {
		log.Printf("[RECV] undecodable response %x: %v", raw, err)
		return
	}
	log.Printf("[RECV] command=0x%04X result=0x%08X (%s) normal=%v translate=%v",
		resp.CommandID, uint32(resp.Result), resp.Result.Name(), resp.Normal, resp.Kinds())
}

// push 经 Kafka（配置了 broker 时）或 gRPC 推送通知
func (sh *shell) push(ctx context.Context, req *protocol.PushNotificationRequest) error {
	if len(*kafkaBrokers) > 0 {
		return sh.produce(ctx, protocol.IntakeMessage{Type: protocol.IntakeTypeNotification, Notification: req})
	}
	ic, err := sh.intakeClient()
	if err != nil {
		return err
	}
	reply, err := ic.Push(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("pushed seq=%d", reply.Seq)
	return nil
}

func (sh *shell) power(ctx context.Context, req *protocol.PowerEventRequest) error {
	if len(*kafkaBrokers) > 0 {
		return sh.produce(ctx, protocol.IntakeMessage{Type: protocol.IntakeTypePower, Power: req})
	}
	ic, err := sh.intakeClient()
	if err != nil {
		return err
	}
	reply, err := ic.Power(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("power event accepted=%v", reply.Accepted)
	return nil
}

func (sh *shell) intakeClient() (*client.IntakeClient, error) {
	if sh.intake == nil {
		ic, err := client.NewIntakeClient(*intakeAddr, *intakeToken)
		if err != nil {
			return nil, err
		}
		sh.intake = ic
	}
	return sh.intake, nil
}

func (sh *shell) produce(ctx context.Context, m protocol.IntakeMessage) error {
	if sh.producer == nil {
		p, err := kafka.NewProducer(config.KafkaConfig{
			Brokers:      *kafkaBrokers,
			Topic:        *kafkaTopic,
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
		})
		if err != nil {
			return err
		}
		sh.producer = p
	}
	value, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	key := []byte(m.Type)
	if m.Notification != nil {
		key = fmt.Appendf(nil, "%d", m.Notification.PrincipalID)
	}
	if err := sh.producer.Send(ctx, key, value); err != nil {
		return err
	}
	log.Printf("produced %s message to %s", m.Type, *kafkaTopic)
	return nil
}
