// play runs an interactive story session in the terminal, using the built-in
// mock generator. Useful for trying the engine without a server or broker.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/JuggernautLabs/storyforge/internal/engine"
	"github.com/JuggernautLabs/storyforge/internal/events"
	"github.com/JuggernautLabs/storyforge/internal/generate"
	"github.com/JuggernautLabs/storyforge/internal/storage/snapshot"
	"github.com/JuggernautLabs/storyforge/internal/story"
)

func main() {
	savePath := flag.String("save", "story-save.json", "path to the session snapshot file")
	flag.Parse()

	bus := events.NewBus(0)
	eng := engine.New(generate.NewMockGenerator(), bus, engine.Options{})
	store := snapshot.NewFileStore(*savePath)

	if err := eng.Restore(store); err != nil {
		log.Fatalf("failed to restore session: %v", err)
	}

	fmt.Println("=== Storyforge ===")
	fmt.Println("Commands: number to choose, (s)tate, save, load, repair, reset, (q)uit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		state := eng.State()
		if state.IsOver {
			fmt.Println()
			fmt.Println(state.EndMessage)
			fmt.Printf("Final: level %d, %d gold, %d XP\n", state.Level, state.Gold, state.Experience)
			return
		}

		printSituation(eng)

		choices, err := eng.RequestChoices(ctx)
		if err != nil {
			fmt.Printf("could not generate choices: %v\n", err)
			return
		}
		printChoices(eng, choices)

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())

		switch input {
		case "q", "quit":
			return
		case "s", "state":
			printState(state)
			continue
		case "save":
			if err := eng.Persist(store); err != nil {
				fmt.Printf("save failed: %v\n", err)
			} else {
				fmt.Println("saved.")
			}
			continue
		case "load":
			if err := eng.Restore(store); err != nil {
				fmt.Printf("load failed: %v\n", err)
			} else {
				fmt.Println("loaded.")
			}
			continue
		case "repair":
			fmt.Printf("repair applied %d fixes\n", eng.AutoRepair())
			continue
		case "reset":
			eng.Reset()
			fmt.Println("session reset.")
			continue
		case "":
			continue
		}

		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(choices) {
			fmt.Println("pick a choice number or a command.")
			continue
		}

		if err := eng.SelectChoice(ctx, choices[n-1].ID); err != nil {
			fmt.Printf("cannot take that path: %v\n", err)
		}
	}
}

func printSituation(eng *engine.Engine) {
	state := eng.State()
	node, ok := eng.Graph().FindNode(state.CurrentNodeID)
	if !ok {
		return
	}
	fmt.Printf("\n--- %s ---\n", node.Label)
	fmt.Println(node.Body)
	fmt.Printf("[level %d | %d gold | %d XP]\n\n", state.Level, state.Gold, state.Experience)
}

func printChoices(eng *engine.Engine, choices []story.Choice) {
	for i, c := range choices {
		line := fmt.Sprintf("%d. %s", i+1, c.Label)
		var tags []string
		if c.Cost > 0 {
			tags = append(tags, fmt.Sprintf("%d gold", c.Cost))
		}
		if c.RewardXP > 0 {
			tags = append(tags, fmt.Sprintf("+%d XP", c.RewardXP))
		}
		tags = append(tags, string(c.Risk)+" risk")
		line += "  (" + strings.Join(tags, ", ") + ")"
		if !eng.CanAfford(c) {
			line += "  [cannot afford]"
		}
		fmt.Println(line)
	}
}

func printState(s engine.StateSnapshot) {
	fmt.Printf("phase: %s\n", s.Phase)
	fmt.Printf("level %d, %d XP, %d gold\n", s.Level, s.Experience, s.Gold)
	fmt.Printf("visited %d nodes, graph has %d nodes / %d edges\n",
		len(s.VisitedNodeIDs), s.NodeCount, s.EdgeCount)
	if len(s.Inventory) > 0 {
		fmt.Println("inventory:")
		for _, item := range s.Inventory {
			fmt.Printf("  %s x%d\n", item.Name, item.Quantity)
		}
	}
}
