// Command zrpcctl is a runnable demo client exercising Add and Multiply RPC
// calls over a direct connection and a create/subscribe/publish pub/sub
// round trip against a running zrpcd.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"zrpc/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "zrpcd listen address")
	topic := flag.String("topic", "demo-topic", "topic key to exercise for the pub/sub scenario")
	flag.Parse()

	if err := runRPCScenario(*addr); err != nil {
		log.Fatalf("zrpcctl: rpc scenario failed: %v", err)
	}
	if err := runTopicScenario(*addr, *topic); err != nil {
		log.Fatalf("zrpcctl: topic scenario failed: %v", err)
	}
}

func runRPCScenario(addr string) error {
	rc, err := client.NewDirectRpcClient(addr)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer rc.Close()

	result, err := rc.Call("Add", map[string]any{"num1": 3, "num2": 5})
	if err != nil {
		return fmt.Errorf("call Add: %w", err)
	}
	fmt.Printf("Add(3, 5) = %s\n", result)

	result, err = rc.Call("Multiply", map[string]any{"num1": 4, "num2": 6})
	if err != nil {
		return fmt.Errorf("call Multiply: %w", err)
	}
	fmt.Printf("Multiply(4, 6) = %s\n", result)
	return nil
}

func runTopicScenario(addr, topicKey string) error {
	publisher, err := client.NewTopicClient(addr)
	if err != nil {
		return fmt.Errorf("dial publisher: %w", err)
	}
	defer publisher.Close()

	subscriber, err := client.NewTopicClient(addr)
	if err != nil {
		return fmt.Errorf("dial subscriber: %w", err)
	}
	defer subscriber.Close()

	if err := publisher.Create(topicKey); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}

	received := make(chan string, 1)
	if err := subscriber.Subscribe(topicKey, func(key, topicMsg string) {
		received <- topicMsg
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	if err := publisher.Publish(topicKey, "hello from zrpcctl"); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case msg := <-received:
		fmt.Printf("subscriber received: %s\n", msg)
	case <-time.After(2 * time.Second):
		return fmt.Errorf("timed out waiting for published message")
	}
	return nil
}
