// Command admin is the operator client for the block engine. It dials the
// server's websocket admin endpoint for live commands and can query the
// sqlite lifecycle index directly.
//
//	admin reload -addr ws://localhost:8420/v1/admin
//	admin status -addr ws://localhost:8420/v1/admin
//	admin db -path data/index.db -table lifecycle -limit 20
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"enchantedblocks.dev/internal/protocol"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "reload":
		cmdReload(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "db":
		cmdDB(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <reload|status|db> [flags]")
}

func cmdReload(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	addr := fs.String("addr", "ws://localhost:8420/v1/admin", "admin websocket URL")
	fs.Parse(args)

	res := roundTrip(*addr, protocol.ReloadMessage{
		Type:      protocol.TypeReload,
		RequestID: uuid.NewString(),
	})
	if !res.OK {
		log.Fatalf("reload failed [%s]: %s", res.Code, res.Message)
	}
	fmt.Println(res.Message)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", "ws://localhost:8420/v1/admin", "admin websocket URL")
	fs.Parse(args)

	res := roundTrip(*addr, protocol.StatusMessage{
		Type:      protocol.TypeStatus,
		RequestID: uuid.NewString(),
	})
	if !res.OK {
		log.Fatalf("status failed [%s]: %s", res.Code, res.Message)
	}
	printJSON(res.Status)
}

// roundTrip dials, performs the HELLO handshake, sends one request and
// returns its RESULT.
func roundTrip(addr string, req any) protocol.ResultMessage {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(10 * time.Second)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	if err := conn.WriteJSON(protocol.HelloMessage{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Client:          "admin-cli",
	}); err != nil {
		log.Fatalf("send hello: %v", err)
	}
	var welcome protocol.WelcomeMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		log.Fatalf("handshake: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		log.Fatalf("handshake rejected: %+v", welcome)
	}

	if err := conn.WriteJSON(req); err != nil {
		log.Fatalf("send request: %v", err)
	}
	var res protocol.ResultMessage
	if err := conn.ReadJSON(&res); err != nil {
		log.Fatalf("read result: %v", err)
	}
	return res
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(out))
}
