package modem

import (
	"bufio"
	"context"
	"fmt"
	"testing"
	"time"
)

func TestDebugFakeModemWire(t *testing.T) {
	device := newFakeModem(okHandler)

	scanner := bufio.NewScanner(device)
	scanner.Split(ATSplitter)

	go func() {
		n, err := device.Write([]byte("AT+CMGD=3" + CRLF))
		fmt.Printf("write: n=%d err=%v\n", n, err)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for scanner.Scan() {
			fmt.Printf("token: %q classify=%d\n", scanner.Text(), Classify(scanner.Text()))
			return
		}
		fmt.Printf("scan ended err=%v\n", scanner.Err())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no token within 2s")
	}
}

func TestDebugClientExchange(t *testing.T) {
	client, _ := startClient(t, okHandler)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := client.command(ctx, "AT+CMGD=3")
	fmt.Printf("command data=%v err=%v\n", data, err)
}

func TestDebugClientSteps(t *testing.T) {
	client, _ := startClient(t, okHandler)

	client.mu.Lock()
	client.drain()
	if err := client.writeLine("AT+CMGD=3"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := client.collect(ctx)
	client.mu.Unlock()
	fmt.Printf("steps: data=%v err=%v\n", data, err)
}

func TestDebugClientLines(t *testing.T) {
	client, device := startClient(t, okHandler)

	if err := client.writeLine("AT+CMGD=3"); err != nil {
		t.Fatal(err)
	}
	select {
	case line := <-client.lines:
		fmt.Printf("got line: %q\n", line)
	case <-time.After(2 * time.Second):
		fmt.Printf("no line; device inputs=%v\n", device.received())
	}
}
