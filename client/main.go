// A small interactive client for poking a running party room server.
//
//	go run ./client -addr http://localhost:8080
//
// Commands: create <nickname>, join <roomId> <nickname>, leave <roomId> <playerId>,
// start <roomId> <gameId>, ready <roomId> <gameId> <nickname>, end <roomId>, quit.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

var addr = flag.String("addr", "http://localhost:8080", "server base URL")

func post(path string, body map[string]any) {
	data, _ := json.Marshal(body)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(*addr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		log.Printf("POST %s failed: %v", path, err)
		return
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	log.Printf("<- %d %s", resp.StatusCode, strings.TrimSpace(string(out)))
}

func main() {
	flag.Parse()
	log.Printf("Talking to %s", *addr)
	fmt.Println("Commands: create, join, leave, start, ready, end, quit")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "create":
			if len(fields) != 2 {
				fmt.Println("usage: create <nickname>")
				continue
			}
			post("/createRoom", map[string]any{"nickname": fields[1]})
		case "join":
			if len(fields) != 3 {
				fmt.Println("usage: join <roomId> <nickname>")
				continue
			}
			post("/joinRoom", map[string]any{"roomId": fields[1], "nickname": fields[2]})
		case "leave":
			if len(fields) != 3 {
				fmt.Println("usage: leave <roomId> <playerId>")
				continue
			}
			post("/leaveRoom", map[string]any{"roomId": fields[1], "playerId": fields[2]})
		case "start":
			if len(fields) != 3 {
				fmt.Println("usage: start <roomId> <gameId>")
				continue
			}
			post("/startGame", map[string]any{"roomId": fields[1], "gameId": fields[2]})
		case "ready":
			if len(fields) != 4 {
				fmt.Println("usage: ready <roomId> <gameId> <nickname>")
				continue
			}
			post("/games/setReady", map[string]any{"roomId": fields[1], "gameId": fields[2], "nickname": fields[3]})
		case "end":
			if len(fields) != 2 {
				fmt.Println("usage: end <roomId>")
				continue
			}
			post("/endGame", map[string]any{"roomId": fields[1]})
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
