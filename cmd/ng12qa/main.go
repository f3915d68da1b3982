package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ng12-risk-assessor/internal/app"
	"ng12-risk-assessor/internal/config"
	"ng12-risk-assessor/internal/logging"
	"ng12-risk-assessor/internal/models"
	"ng12-risk-assessor/internal/rag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Parse command line flags
	contextLimit := flag.Int("k", cfg.TopK, "Number of guideline excerpts to retrieve")
	interactive := flag.Bool("i", false, "Run in interactive mode")
	queryFlag := flag.String("q", "", "Question to answer (non-interactive mode)")
	assessFlag := flag.String("assess", "", "Assess the patient with this id")
	asJSON := flag.Bool("json", false, "Print results as JSON")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	builder := app.NewBuilder(cfg, logger)
	defer builder.Close()

	svc, err := builder.Services(ctx)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	switch {
	case *assessFlag != "":
		result, err := assess(ctx, builder, svc.Assessor, *assessFlag, *contextLimit)
		if err != nil {
			log.Fatalf("Failed to assess patient: %v", err)
		}
		if *asJSON {
			printJSON(result)
			return
		}
		fmt.Println(formatAssessment(result))

	case *interactive:
		runInteractiveMode(ctx, builder, svc, *contextLimit)

	default:
		if *queryFlag == "" {
			log.Fatal("A question is required in non-interactive mode. Use -q 'your question', -i or -assess <patient id>")
		}

		answer, err := svc.Chat.Chat(ctx, *queryFlag, nil, *contextLimit)
		if err != nil {
			log.Fatalf("Failed to process query: %v", err)
		}
		if *asJSON {
			printJSON(answer)
			return
		}
		fmt.Println(formatAnswer(answer))
	}
}

func assess(ctx context.Context, builder *app.Builder, assessor *rag.Assessor, patientID string, topK int) (*models.AssessmentResult, error) {
	repo, err := builder.Patients(ctx)
	if err != nil {
		return nil, err
	}
	patient, err := repo.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return assessor.Assess(ctx, *patient, topK)
}

func runInteractiveMode(ctx context.Context, builder *app.Builder, svc *app.Services, contextLimit int) {
	scanner := bufio.NewScanner(os.Stdin)
	var history []models.ChatTurn

	fmt.Println("NG12 Assistant - Ask about suspected cancer referral criteria (type 'exit' to quit)")
	fmt.Println("Commands: /assess <patient id>, /clear")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}
		if input == "" {
			continue
		}

		if strings.EqualFold(input, "/clear") {
			history = nil
			fmt.Println("Conversation cleared")
			continue
		}

		if strings.HasPrefix(strings.ToLower(input), "/assess ") {
			patientID := strings.TrimSpace(input[len("/assess "):])
			fmt.Print("Assessing patient... ")
			result, err := assess(ctx, builder, svc.Assessor, patientID, contextLimit)
			if err != nil {
				fmt.Printf("\rError: %v\n", err)
				continue
			}
			fmt.Println("\r" + formatAssessment(result))
			continue
		}

		// Show "thinking" indicator
		fmt.Print("Searching NG12... ")

		history = append(history, models.ChatTurn{Role: models.RoleUser, Content: input, TS: time.Now()})
		answer, err := svc.Chat.Chat(ctx, input, history, contextLimit)
		if err != nil {
			history = history[:len(history)-1]
			fmt.Printf("\rError: %v\n", err)
			continue
		}
		history = append(history, models.ChatTurn{Role: models.RoleAssistant, Content: answer.Answer, TS: time.Now()})

		fmt.Println("\r" + formatAnswer(answer))
	}
}

func formatAnswer(answer models.ChatAnswer) string {
	var sb strings.Builder

	sb.WriteString(answer.Answer)
	sb.WriteString("\n\n")
	writeCitations(&sb, answer.Citations)

	return sb.String()
}

func formatAssessment(result *models.AssessmentResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Patient: %s\n", result.PatientID))
	sb.WriteString(fmt.Sprintf("Decision: %s (confidence %.2f)\n\n", result.Decision, result.Confidence))
	if result.Summary != "" {
		sb.WriteString(result.Summary)
		sb.WriteString("\n\n")
	}
	if result.Reasoning != "" {
		sb.WriteString("Reasoning:\n")
		sb.WriteString(result.Reasoning)
		sb.WriteString("\n\n")
	}
	writeCitations(&sb, result.Citations)

	return sb.String()
}

func writeCitations(sb *strings.Builder, cits []models.Citation) {
	if len(cits) == 0 {
		return
	}
	sb.WriteString("Sources:\n")
	for i, c := range cits {
		page := "N/A"
		if c.Page != models.UnknownPage {
			page = fmt.Sprintf("%d", c.Page)
		}
		sb.WriteString(fmt.Sprintf("  %d. [%s, Page: %s, Chunk: %s]\n", i+1, c.Source, page, c.ChunkID))
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}
