package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// Command mirrors the envelope the economy consumer decodes
type Command struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id,omitempty"`
	Verb     string `json:"verb"`
	Amount   string `json:"amount,omitempty"`
	Args     string `json:"args,omitempty"`
}

var actorPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

func actorName(idx int) string {
	prefixIdx := idx % len(actorPrefixes)
	suffix := idx/len(actorPrefixes) + 1
	return fmt.Sprintf("%s%d", actorPrefixes[prefixIdx], suffix)
}

var rouletteArgs = []string{"17", "0", "red", "black", "even", "odd", "dozen1", "dozen2", "dozen3"}

// randomCommand draws one synthetic command. Gambles dominate, the way
// real chat traffic does; thefts and arrests only make sense once some
// actors bought the privileges, so a slice of traffic buys them.
func randomCommand(totalActors int) Command {
	actor := actorName(rand.Intn(totalActors))
	target := actorName(rand.Intn(totalActors))

	switch rand.Intn(10) {
	case 0, 1, 2:
		return Command{
			ActorID: actor,
			Verb:    "roulette",
			Amount:  fmt.Sprintf("%d", rand.Intn(500)+10),
			Args:    rouletteArgs[rand.Intn(len(rouletteArgs))],
		}
	case 3, 4:
		return Command{
			ActorID: actor,
			Verb:    "dice",
			Amount:  fmt.Sprintf("%d", rand.Intn(500)+10),
			Args:    fmt.Sprintf("%d", rand.Intn(11)+2),
		}
	case 5, 6:
		return Command{
			ActorID:  actor,
			TargetID: target,
			Verb:     "transfer",
			Amount:   fmt.Sprintf("%d", rand.Intn(200)+1),
			Args:     "loadgen",
		}
	case 7:
		return Command{ActorID: actor, TargetID: target, Verb: "steal"}
	case 8:
		return Command{
			ActorID:  actor,
			TargetID: target,
			Verb:     "arrest",
			Args:     fmt.Sprintf("%dh %dm", rand.Intn(4), rand.Intn(60)),
		}
	default:
		kind := "thief"
		if rand.Intn(2) == 0 {
			kind = "police"
		}
		return Command{ActorID: actor, Verb: "buy", Args: kind}
	}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "economy-commands", "Kafka topic")
	totalActors := flag.Int("actors", 500, "Number of distinct actors")
	commandsPerSecond := flag.Int("rate", 50, "Commands per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Economy command load generator")
	fmt.Printf("  Brokers:       %s\n", *brokers)
	fmt.Printf("  Topic:         %s\n", *topic)
	fmt.Printf("  Actors:        %d\n", *totalActors)
	fmt.Printf("  Commands/sec:  %d\n", *commandsPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendCommand := func(cmd Command) {
		data, err := json.Marshal(cmd)
		if err != nil {
			log.Printf("Failed to marshal command: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(cmd.ActorID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*commandsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var sentCount int64

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nDone. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\nDuration reached, shutting down...")
				shutdown()
				return
			}

			sendCommand(randomCommand(*totalActors))
			atomic.AddInt64(&sentCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sentCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
