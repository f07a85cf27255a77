package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/chzyer/readline"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

const searchLimit = 5

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
}

// console is the menu-driven test terminal.
type console struct {
	api       *APIClient
	rl        *readline.Instance
	currentID string
	out       io.Writer
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:5000"),
		Timeout:    2 * time.Minute,
	}

	api := NewAPIClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.Timeout})
	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API at %s. Please ensure the API is running.\nTry: docker-compose up -d\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".chronicle_npc_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = rl.Close()
	}()

	c := &console{api: api, rl: rl, out: rl.Stdout()}
	c.run()
}

func (c *console) run() {
	c.printf("NPC System Test Interface\n%s\n", strings.Repeat("=", 50))

	for {
		c.printf("\nMAIN MENU:\n")
		c.printf("1. Create New NPC\n2. Load Existing NPC\n3. Search NPCs\n4. Talk to Current NPC\n")
		c.printf("5. View NPC Summary\n6. View Conversation History\n7. Exit\n")

		choice, err := c.ask("\nSelect option (1-7): ")
		if err != nil {
			c.printf("Goodbye!\n")
			return
		}

		switch choice {
		case "1":
			c.createWizard()
		case "2":
			c.loadNPC()
		case "3":
			c.searchNPCs()
		case "4":
			c.talk()
		case "5":
			c.viewSummary()
		case "6":
			c.viewHistory()
		case "7", "exit", "quit":
			c.printf("Goodbye!\n")
			return
		default:
			c.printf("Invalid option. Please try again.\n")
		}
	}
}

// ask prompts for one line. It returns an error only when input ends.
func (c *console) ask(prompt string) (string, error) {
	c.rl.SetPrompt(prompt)
	line, err := c.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// askDefault returns fallback when the answer is empty or input ends.
func (c *console) askDefault(prompt, fallback string) string {
	answer, err := c.ask(prompt)
	if err != nil || answer == "" {
		return fallback
	}
	return answer
}

func (c *console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *console) createWizard() {
	c.printf("\nNPC Creation Wizard\n%s\n", strings.Repeat("-", 30))

	c.printf("\nCHARACTER DETAILS:\n")
	character := map[string]any{
		"name":            c.askDefault("Name: ", "Unnamed NPC"),
		"gender":          c.askDefault("Gender (Male/Female/Non-binary/None): ", "Male"),
		"age":             c.askDefault("Age (Young/Adult/Middle-aged/Old): ", "Adult"),
		"race_species":    c.askDefault("Race/Species: ", "Human"),
		"profession_role": c.askDefault("Profession/Role: ", "Citizen"),
		"alignment":       c.askDefault("Alignment (Good/Neutral/Evil): ", "Neutral"),
		"faction":         c.askDefault("Faction: ", "None"),
	}
	personality := splitList(c.askDefault("Personality traits (comma-separated): ", ""))
	if len(personality) == 0 {
		personality = []string{"Friendly"}
	}
	character["personality"] = personality
	character["skills"] = splitList(c.askDefault("Skills (comma-separated): ", ""))
	character["backstory"] = c.askDefault("Brief backstory (optional): ", "")
	character["traits_flaws"] = splitList(c.askDefault("Traits/Flaws (comma-separated): ", ""))

	c.printf("\nWORLD SETTINGS:\n")
	world := map[string]any{
		"world_theme":      c.askDefault("World Theme (Medieval Fantasy/Sci-Fi/Modern/etc.): ", "Medieval Fantasy"),
		"location":         c.askDefault("Location: ", "Village"),
		"time_period":      c.askDefault("Time Period: ", "Medieval"),
		"environment":      c.askDefault("Environment: ", "Temperate"),
		"tech_level":       c.askDefault("Tech Level (Low/Medium/High): ", "Low"),
		"faction_tensions": c.askDefault("Faction Tensions (Low/Medium/High): ", "Medium"),
	}

	c.printf("\nBEHAVIOR SETTINGS:\n")
	givesQuest := strings.EqualFold(c.askDefault("Can give quests? (y/n): ", "n"), "y")
	behavior := map[string]any{
		"gives_quest": givesQuest,
		"combat_role": c.askDefault("Combat Role (Passive/Guard/Aggressive): ", "Passive"),
	}
	if givesQuest {
		if questID := c.askDefault("Quest ID (optional): ", ""); questID != "" {
			behavior["quest_id"] = questID
		}
	}
	behavior["available_services"] = splitList(c.askDefault("Available Services (comma-separated): ", ""))
	behavior["trade_items"] = splitList(c.askDefault("Trade Items (comma-separated): ", ""))

	custom := c.askDefault("\nCustom requirements/prompt (optional): ", "")

	c.printf("\nGenerating NPC...\n")
	npcID, err := c.api.CreateNPC(chat.CreateNPCRequest{
		CharacterParams: character,
		WorldSettings:   world,
		BehaviorParams:  behavior,
		CustomPrompt:    custom,
	})
	if err != nil {
		c.printf("Error creating NPC: %v\n", err)
		return
	}
	c.currentID = npcID
	c.printf("NPC created successfully! ID: %s\n", npcID)
	if err := clipboard.WriteAll(npcID); err == nil {
		c.printf("(ID copied to clipboard)\n")
	}

	if summary, ok, err := c.api.Summary(npcID); err == nil && ok {
		c.printf("\n%s\n", summary)
	}
}

func (c *console) loadNPC() {
	npcID := c.askDefault("\nEnter NPC ID: ", "")
	if npcID == "" {
		return
	}
	summary, ok, err := c.api.Summary(npcID)
	if err != nil {
		c.printf("Error loading NPC: %v\n", err)
		return
	}
	if !ok {
		c.printf("NPC not found\n")
		return
	}
	c.currentID = npcID
	c.printf("Loaded NPC: %s\n%s\n", npcID, summary)
}

func (c *console) searchNPCs() {
	query := c.askDefault("\nSearch query (describe what you're looking for): ", "")
	if query == "" {
		return
	}
	hits, err := c.api.Search(query, searchLimit)
	if err != nil {
		c.printf("Search failed: %v\n", err)
		return
	}
	if len(hits) == 0 {
		c.printf("No NPCs found matching your search\n")
		return
	}

	c.printf("\nFound %d NPCs:\n", len(hits))
	for i, h := range hits {
		c.printf("%d. %s (%s) - %s - %s\n", i+1, h.Name, h.Profession, h.Faction, h.Location)
	}

	choice, err := strconv.Atoi(c.askDefault("\nSelect NPC (number): ", ""))
	if err != nil {
		c.printf("Invalid input\n")
		return
	}
	if choice < 1 || choice > len(hits) {
		c.printf("Invalid selection\n")
		return
	}
	selected := hits[choice-1]
	c.currentID = selected.NPCID
	c.printf("Selected: %s\n", selected.Name)
	if summary, ok, err := c.api.Summary(selected.NPCID); err == nil && ok {
		c.printf("%s\n", summary)
	}
}

func (c *console) talk() {
	if c.currentID == "" {
		c.printf("No NPC selected. Please create or load an NPC first.\n")
		return
	}
	summary, ok, err := c.api.Summary(c.currentID)
	if err != nil || !ok {
		c.printf("Current NPC not found\n")
		return
	}

	dc := actor.DialogueContext{
		DialogueType:     strings.ToUpper(c.askDefault("Dialogue type (GREETING/QUEST/TRADE/FLAVOR): ", "GREETING")),
		DialogueStage:    strings.ToUpper(c.askDefault("Dialogue stage (FIRST_MEET/REPEAT/ONGOING): ", "FIRST_MEET")),
		Mood:             c.askDefault("NPC mood (Neutral/Happy/Angry/Suspicious): ", "Neutral"),
		PlayerReputation: c.askDefault("Your reputation (Unknown/Trusted/Feared): ", "Unknown"),
		QuestState:       c.askDefault("Quest state (Not Given/In Progress/Completed): ", "Not Given"),
	}

	p := tea.NewProgram(NewChatUI(c.api, c.currentID, nameFromSummary(summary), dc),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		c.printf("Error running chat: %v\n", err)
	}
}

func (c *console) viewSummary() {
	if c.currentID == "" {
		c.printf("No NPC selected\n")
		return
	}
	summary, ok, err := c.api.Summary(c.currentID)
	switch {
	case err != nil:
		c.printf("Error: %v\n", err)
	case !ok:
		c.printf("NPC not found\n")
	default:
		c.printf("%s\n", summary)
	}
}

func (c *console) viewHistory() {
	if c.currentID == "" {
		c.printf("No NPC selected\n")
		return
	}
	history, err := c.api.Conversation(c.currentID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("%s\n", history)
}

// splitList splits a comma-separated answer, dropping blanks.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// nameFromSummary pulls the bold name out of a persona card header.
func nameFromSummary(summary string) string {
	start := strings.Index(summary, "**")
	if start < 0 {
		return "NPC"
	}
	rest := summary[start+2:]
	end := strings.Index(rest, "**")
	if end <= 0 {
		return "NPC"
	}
	return rest[:end]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
