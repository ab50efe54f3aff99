package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"sambaza/internal/rate"
)

const parseTimeout = 10 * time.Second

// OpenAIParser implements Parser with chat-completion function calling. The
// model picks one wallet function and the arguments become the Action; a
// plain-text answer becomes a general Reply.
type OpenAIParser struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIParser builds the parser for the given API key and model.
func NewOpenAIParser(apiKey, model string, logger *zap.Logger) *OpenAIParser {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIParser{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

type toolParams struct {
	Recipient   string  `json:"recipient"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Limit       int     `json:"limit"`
}

// Parse sends the turn to the model and maps the tool call back to an Action.
func (p *OpenAIParser) Parse(ctx context.Context, in Input) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt(in)},
	}
	for _, turn := range in.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: in.Text})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
		Tools:    walletTools,
	})
	if err != nil {
		return Result{}, fmt.Errorf("intent: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("intent: empty completion")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return Result{Reply: msg.Content}, nil
	}

	call := msg.ToolCalls[0]
	var params toolParams
	if err := json.Unmarshal([]byte(call.Function.Arguments), &params); err != nil {
		return Result{}, fmt.Errorf("intent: decode arguments: %w", err)
	}

	p.logger.Info("parsed natural language input",
		zap.String("function", call.Function.Name),
		zap.String("text", in.Text),
	)

	recipient := params.Recipient
	if recipient == "" {
		recipient = params.PhoneNumber
	}
	return Result{Action: &Action{
		Kind:      call.Function.Name,
		Recipient: recipient,
		Amount:    params.Amount,
		Currency:  params.Currency,
		Memo:      params.Description,
		Limit:     params.Limit,
	}}, nil
}

func (p *OpenAIParser) systemPrompt(in Input) string {
	prompt := fmt.Sprintf(`You are a Bitcoin Lightning USSD wallet assistant for Kenya.
User phone: %s
Current balance: %d sats (~%d KES)
Exchange rate: %d KES = %d sats.

Parse user requests and call the matching wallet function. Users may phrase
intents loosely: "send 5000 to Bob", "topup 500", "buy btc 500 kes",
"withdraw 200 shillings", "generate invoice 3000", "buy airtime 100",
"what's my balance", "history". Buying bitcoin or topping up adds money TO
the wallet and never depends on the current balance.

Known contacts: Alice +254712345678, Bob +254787654321, Charlie +254798765432.

Use conversation history for follow-ups: if the user asked to top up and now
says "500", that is the top-up amount.`,
		in.Phone, in.BalanceSats, rate.SatsToKES(in.BalanceSats),
		rate.KESPerBlock, rate.SatsPerBlock)

	if in.Context != nil {
		prompt += fmt.Sprintf("\n\nActive operation: %s, awaiting %s.", in.Context.Operation, in.Context.Awaiting)
	}
	return prompt
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

type schema map[string]interface{}

var walletTools = []openai.Tool{
	fn(KindSendBitcoin, "Send Bitcoin to another user", schema{
		"type": "object",
		"properties": schema{
			"recipient": schema{"type": "string", "description": "Recipient phone number or name"},
			"amount":    schema{"type": "number"},
			"currency":  schema{"type": "string", "enum": []string{"sats", "kes"}},
		},
		"required": []string{"recipient", "amount", "currency"},
	}),
	fn(KindCheckBalance, "Check the user's Bitcoin balance", schema{
		"type": "object", "properties": schema{},
	}),
	fn(KindTopupMpesa, "Buy Bitcoin / top up the wallet via M-Pesa", schema{
		"type": "object",
		"properties": schema{
			"amount": schema{"type": "number", "description": "Amount in KES"},
		},
	}),
	fn(KindWithdrawMpesa, "Withdraw Bitcoin to M-Pesa", schema{
		"type": "object",
		"properties": schema{
			"amount":   schema{"type": "number"},
			"currency": schema{"type": "string", "enum": []string{"kes", "sats"}},
		},
	}),
	fn(KindGenerateInvoice, "Generate a Lightning invoice for receiving Bitcoin", schema{
		"type": "object",
		"properties": schema{
			"amount":      schema{"type": "number", "description": "Amount in satoshis"},
			"description": schema{"type": "string"},
		},
		"required": []string{"amount"},
	}),
	fn(KindShowMenu, "Show the main USSD menu", schema{
		"type": "object", "properties": schema{},
	}),
	fn(KindHistory, "Show recent transaction history", schema{
		"type": "object",
		"properties": schema{
			"limit": schema{"type": "number"},
		},
	}),
	fn(KindHelp, "Show help information", schema{
		"type": "object", "properties": schema{},
	}),
	fn(KindBuyAirtime, "Buy mobile airtime with Bitcoin", schema{
		"type": "object",
		"properties": schema{
			"phone_number": schema{"type": "string"},
			"amount":       schema{"type": "number", "description": "Amount in KES (10-1000)"},
		},
		"required": []string{"amount"},
	}),
}

func fn(name, description string, params schema) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  mustJSON(params),
		},
	}
}
