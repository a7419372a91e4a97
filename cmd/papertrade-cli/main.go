package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/client"
)

const menu = `
==== papertrade ====
1. View instruments
2. Buy
3. Sell
4. View orders
5. View portfolio
6. View trades
7. Cancel order
8. Simulation status
9. Start/stop simulation
0. Exit
`

type cli struct {
	api *client.Client
	in  *bufio.Scanner
	out io.Writer
}

func main() {
	defaultAPI := os.Getenv("PAPERTRADE_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:3000"
	}
	apiURL := flag.String("api", defaultAPI, "Base URL of the papertrade server")
	user := flag.String("user", "", "Act as this user instead of the server default")
	flag.Parse()

	var opts []client.Option
	if *user != "" {
		opts = append(opts, client.WithUser(*user))
	}
	c := &cli{
		api: client.New(*apiURL, opts...),
		in:  bufio.NewScanner(os.Stdin),
		out: os.Stdout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := c.api.Health(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach server at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	c.run()
}

func (c *cli) run() {
	for {
		fmt.Fprint(c.out, menu)
		choice, ok := c.prompt("select option: ")
		if !ok {
			return
		}

		var err error
		switch choice {
		case "1":
			err = c.instruments()
		case "2":
			err = c.placeOrder("BUY")
		case "3":
			err = c.placeOrder("SELL")
		case "4":
			err = c.orders()
		case "5":
			err = c.portfolio()
		case "6":
			err = c.trades()
		case "7":
			err = c.cancelOrder()
		case "8":
			err = c.simulation()
		case "9":
			err = c.toggleSimulation()
		case "0", "q", "exit":
			return
		default:
			fmt.Fprintln(c.out, "unknown option")
		}
		if err != nil {
			c.printError(err)
		}
	}
}

// prompt prints label and reads one trimmed line. It reports false on EOF.
func (c *cli) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *cli) printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(c.out, "error: %s\n", apiErr.Message)
		for _, e := range apiErr.Errors {
			fmt.Fprintf(c.out, "  - %s\n", e)
		}
		return
	}
	fmt.Fprintf(c.out, "error: %v\n", err)
}

func (c *cli) instruments() error {
	list, err := c.api.Instruments(context.Background())
	if err != nil {
		return err
	}
	writer := c.table("symbol", "exchange", "type", "last price", "updated")
	for _, in := range list {
		writer.Append([]string{in.Symbol, in.Exchange, in.InstrumentType, money(in.LastTradedPrice), clock(in.UpdatedAt)})
	}
	writer.SetCaption(true, "instruments")
	writer.Render()
	return nil
}

func (c *cli) placeOrder(side string) error {
	symbol, ok := c.prompt("symbol: ")
	if !ok {
		return nil
	}
	style, ok := c.prompt("style (MARKET/LIMIT): ")
	if !ok {
		return nil
	}
	qtyText, ok := c.prompt("quantity: ")
	if !ok {
		return nil
	}
	// A malformed quantity is sent as 0 so the server reports it.
	qty, _ := strconv.ParseInt(qtyText, 10, 64)

	req := client.PlaceOrderRequest{
		Symbol:     strings.ToUpper(symbol),
		OrderType:  side,
		OrderStyle: strings.ToUpper(style),
		Quantity:   qty,
	}
	if req.OrderStyle == "LIMIT" {
		priceText, ok := c.prompt("limit price: ")
		if !ok {
			return nil
		}
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			return fmt.Errorf("invalid price %q", priceText)
		}
		req.Price = &price
	}

	exec, err := c.api.PlaceOrder(context.Background(), req)
	if err != nil {
		return err
	}
	if exec.Trade != nil {
		fmt.Fprintf(c.out, "order %s executed: %d %s @ %s\n",
			exec.Order.OrderID, exec.Trade.Quantity, exec.Trade.Symbol, money(exec.Trade.ExecutedPrice))
		return nil
	}
	fmt.Fprintf(c.out, "order %s placed, waiting for price %s\n", exec.Order.OrderID, money(*exec.Order.Price))
	return nil
}

func (c *cli) orders() error {
	list, err := c.api.Orders(context.Background(), "")
	if err != nil {
		return err
	}
	writer := c.table("order id", "symbol", "side", "style", "qty", "price", "status", "created")
	for _, o := range list {
		price := "-"
		if o.Price != nil {
			price = money(*o.Price)
		}
		writer.Append([]string{o.OrderID, o.Symbol, o.OrderType, o.OrderStyle,
			strconv.FormatInt(o.Quantity, 10), price, o.Status, clock(o.CreatedAt)})
	}
	writer.SetCaption(true, "orders")
	writer.Render()
	return nil
}

func (c *cli) portfolio() error {
	summary, err := c.api.PortfolioSummary(context.Background())
	if err != nil {
		return err
	}
	writer := c.table("symbol", "qty", "avg price", "invested", "current", "p&l")
	for _, h := range summary.Holdings {
		writer.Append([]string{h.Symbol, strconv.FormatInt(h.Quantity, 10), money(h.AveragePrice),
			money(h.InvestedValue), money(h.CurrentValue), money(h.ProfitLoss)})
	}
	writer.SetFooter([]string{"total", "", "", money(summary.TotalInvestedValue), money(summary.TotalCurrentValue),
		fmt.Sprintf("%s (%s%%)", money(summary.TotalProfitLoss), money(summary.TotalProfitLossPercentage))})
	writer.SetCaption(true, "portfolio")
	writer.Render()
	return nil
}

func (c *cli) trades() error {
	ctx := context.Background()
	list, err := c.api.Trades(ctx)
	if err != nil {
		return err
	}
	stats, err := c.api.TradeStats(ctx)
	if err != nil {
		return err
	}
	writer := c.table("time", "trade id", "symbol", "side", "qty", "price", "total")
	for _, t := range list {
		writer.Append([]string{clock(t.ExecutedAt), t.TradeID, t.Symbol, t.OrderType,
			strconv.FormatInt(t.Quantity, 10), money(t.ExecutedPrice), money(t.TotalValue)})
	}
	writer.SetCaption(true, fmt.Sprintf("trades: %d buys, %d sells, volume %s",
		stats.TotalBuyTrades, stats.TotalSellTrades, money(stats.TotalVolume)))
	writer.Render()
	return nil
}

func (c *cli) cancelOrder() error {
	id, ok := c.prompt("order id: ")
	if !ok {
		return nil
	}
	order, err := c.api.CancelOrder(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "order %s %s\n", order.OrderID, strings.ToLower(order.Status))
	return nil
}

func (c *cli) simulation() error {
	st, err := c.api.Simulation(context.Background())
	if err != nil {
		return err
	}
	c.printSimulation(st)
	return nil
}

func (c *cli) toggleSimulation() error {
	ctx := context.Background()
	st, err := c.api.Simulation(ctx)
	if err != nil {
		return err
	}
	if st.Running {
		st, err = c.api.StopSimulation(ctx)
	} else {
		st, err = c.api.StartSimulation(ctx)
	}
	if err != nil {
		return err
	}
	c.printSimulation(st)
	return nil
}

func (c *cli) printSimulation(st client.SimulationStatus) {
	last := "-"
	if st.LastTickAt != nil {
		last = clock(*st.LastTickAt)
	}
	writer := c.table("running", "interval", "volatility", "ticks", "last tick", "resting orders")
	writer.Append([]string{strconv.FormatBool(st.Running), st.Interval,
		strconv.FormatFloat(st.Volatility*100, 'f', -1, 64) + "%", strconv.FormatInt(st.Ticks, 10),
		last, strconv.Itoa(st.RestingOrders)})
	writer.SetCaption(true, "simulation")
	writer.Render()
}

func (c *cli) table(header ...string) *tablewriter.Table {
	writer := tablewriter.NewWriter(c.out)
	writer.SetHeader(header)
	return writer
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04:05")
}
