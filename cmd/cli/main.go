package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type product struct {
	Code string
}

type scenario struct {
	Name        string
	Description string
}

type model struct {
	products    []product
	scenarios   []scenario
	selectedPrd int
	selectedScn int
	status      string
	metrics     string
	busy        bool
}

func initialModel() model {
	return model{
		products: []product{
			{"LINGMA_PERSONAL_ADVANCED"},
			{"LINGMA_EXCLUSIVE"},
			{"LINGMA_ENTERPRISE_STANDARD"},
			{"LINGMA_ENTERPRISE_EXCLUSIVE"},
		},
		scenarios: []scenario{
			{"create", "Create a presale order"},
			{"lifecycle", "Walk presale through ordered, expansion, churned"},
			{"delete", "Create a presale order and delete it with a reason"},
			{"bench", "Run create benchmark"},
		},
		status: "Ready",
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selectedPrd > 0 {
				m.selectedPrd--
			}
		case "down":
			if m.selectedPrd < len(m.products)-1 {
				m.selectedPrd++
			}
		case "left":
			if m.selectedScn > 0 {
				m.selectedScn--
			}
		case "right":
			if m.selectedScn < len(m.scenarios)-1 {
				m.selectedScn++
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Running..."
			prd := m.products[m.selectedPrd].Code
			scn := m.scenarios[m.selectedScn].Name
			return m, runScenarioCmd(prd, scn)
		}
	case scenarioResult:
		m.busy = false
		m.status = msg.status
		m.metrics = msg.metrics
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "crm-orders-go CLI")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Products:")
	for i, prd := range m.products {
		marker := " "
		if i == m.selectedPrd {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %s\n", marker, prd.Code)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Scenarios (use left/right):")
	for i, scn := range m.scenarios {
		marker := " "
		if i == m.selectedScn {
			marker = "*"
		}
		fmt.Fprintf(b, " %s %s - %s\n", marker, scn.Name, scn.Description)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.metrics != "" {
		fmt.Fprintf(b, "Metrics: %s\n", m.metrics)
	}
	fmt.Fprintln(b, "\nControls: up/down select product, left/right select scenario, enter to run, q to quit")
	return b.String()
}

type scenarioResult struct {
	status  string
	metrics string
}

func runScenarioCmd(product, scn string) tea.Cmd {
	return func() tea.Msg {
		baseURL := getenv("ORDER_BASE_URL", "http://localhost:8080")
		switch scn {
		case "bench":
			metrics := runBenchmark(baseURL, product)
			return scenarioResult{status: "Benchmark finished", metrics: metrics}
		case "lifecycle":
			return runLifecycle(baseURL, product)
		case "delete":
			return runDelete(baseURL, product)
		default:
			body, err := createOrder(baseURL, product)
			if err != nil {
				return scenarioResult{status: fmt.Sprintf("Create failed: %v", err)}
			}
			return scenarioResult{status: fmt.Sprintf("Create OK: %s", body)}
		}
	}
}

func runLifecycle(baseURL, product string) scenarioResult {
	body, err := createOrder(baseURL, product)
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Create failed: %v", err)}
	}
	var created struct {
		Cid string `json:"cid"`
	}
	if err := json.Unmarshal([]byte(body), &created); err != nil || created.Cid == "" {
		return scenarioResult{status: fmt.Sprintf("Create returned no cid: %s", body)}
	}

	steps := []struct {
		status int
		reason string
	}{
		{1, "contract signed"},
		{2, "bought more seats"},
		{3, "not renewed"},
	}
	for _, s := range steps {
		if _, err := advanceOrder(baseURL, created.Cid, s.status, s.reason); err != nil {
			return scenarioResult{status: fmt.Sprintf("Advance to %d failed: %v", s.status, err)}
		}
	}
	return scenarioResult{status: fmt.Sprintf("Lifecycle OK: %s reached churned", created.Cid)}
}

func runDelete(baseURL, product string) scenarioResult {
	body, err := createOrder(baseURL, product)
	if err != nil {
		return scenarioResult{status: fmt.Sprintf("Create failed: %v", err)}
	}
	var created struct {
		Cid string `json:"cid"`
	}
	if err := json.Unmarshal([]byte(body), &created); err != nil || created.Cid == "" {
		return scenarioResult{status: fmt.Sprintf("Create returned no cid: %s", body)}
	}
	if err := deleteOrder(baseURL, created.Cid, "created from cli, cleaning up"); err != nil {
		return scenarioResult{status: fmt.Sprintf("Delete failed: %v", err)}
	}
	return scenarioResult{status: fmt.Sprintf("Delete OK: %s removed", created.Cid)}
}

func createOrder(baseURL, product string) (string, error) {
	payload := map[string]any{
		"customerName":      "cli-demo",
		"productVersion":    product,
		"devScale":          10,
		"purchasedLicCount": 2,
	}
	return doRequest(http.MethodPost, baseURL+"/api/orders", payload, uuid.NewString())
}

func advanceOrder(baseURL, cid string, status int, reason string) (string, error) {
	payload := map[string]any{"status": status, "reason": reason}
	return doRequest(http.MethodPut, baseURL+"/api/orders/"+cid+"/status", payload, "")
}

func deleteOrder(baseURL, cid, reason string) error {
	_, err := doRequest(http.MethodDelete,
		baseURL+"/api/orders/"+cid+"?reason="+url.QueryEscape(reason), nil, "")
	return err
}

func doRequest(method, rawURL string, payload any, idemKey string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	return string(data), nil
}

func runBenchmark(baseURL, product string) string {
	duration := 5 * time.Second
	vus := 5
	var mu sync.Mutex
	var total time.Duration
	var count int
	var errors int
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < vus; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
					start := time.Now()
					_, err := createOrder(baseURL, product)
					mu.Lock()
					if err != nil {
						errors++
					} else {
						count++
						total += time.Since(start)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	avg := time.Duration(0)
	if count > 0 {
		avg = total / time.Duration(count)
	}
	throughput := float64(count) / duration.Seconds()
	return fmt.Sprintf("count=%d errors=%d avg=%s throughput=%.2f orders/s", count, errors, avg, throughput)
}

func main() {
	runCmd := flag.String("run", "", "run scenario: create|lifecycle|delete|bench")
	product := flag.String("product", "LINGMA_EXCLUSIVE", "product code for created orders")
	flag.Parse()

	if *runCmd != "" {
		res := runScenarioCmd(*product, *runCmd)().(scenarioResult)
		fmt.Println(res.status)
		if res.metrics != "" {
			fmt.Println(res.metrics)
		}
		return
	}

	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
