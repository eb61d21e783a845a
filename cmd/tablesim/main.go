// Package main simulates a diner against a running backend: it scans a
// restaurant code, orders from the menu with a table PIN and follows the
// ticket until the table is closed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mesa-order-client/internal/config"
	"mesa-order-client/internal/logger"
	"mesa-order-client/pkg/backend"
	"mesa-order-client/pkg/cart"
	"mesa-order-client/pkg/lifecycle"
	"mesa-order-client/pkg/menu"
	"mesa-order-client/pkg/monitor"
	"mesa-order-client/pkg/order"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const demoQR = `{"id_restaurante": "1", "nombre": "La Fonda"}`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var apiURL, qrPayload, pin, items, bill string
	flag.StringVar(&apiURL, "api", cfg.APIURL, "backend base url")
	flag.StringVar(&qrPayload, "qr", demoQR, "decoded restaurant QR payload")
	flag.StringVar(&pin, "pin", "", "table PIN given by the waiter (required)")
	flag.StringVar(&items, "items", "", "items to order, e.g. 101x2,201:sin hielo (default: first menu item)")
	flag.StringVar(&bill, "bill", "", "request the bill after ordering: tarjeta or efectivo")
	flag.Parse()

	if pin == "" {
		fmt.Fprintln(os.Stderr, "Error: -pin is required")
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg, log, apiURL, qrPayload, pin, items, bill); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, apiURL, qrPayload, pin, items, bill string) error {
	client, err := backend.New(apiURL, backend.Options{Timeout: cfg.RequestTimeout, Logger: log.Named("backend")})
	if err != nil {
		return err
	}

	closed := make(chan monitor.Notice, 1)
	c := lifecycle.New(lifecycle.Options{
		Oracle:  client,
		Gateway: client,
		Notifier: monitor.NotifierFunc(func(n monitor.Notice) {
			select {
			case closed <- n:
			default:
			}
		}),
		Logger:         log,
		CheckInterval:  cfg.SessionCheckInterval,
		RequestTimeout: cfg.RequestTimeout,
		MinPINLength:   cfg.PINMinLength,
	})
	defer c.Close()
	c.OnTransition(func(from, to lifecycle.State) {
		fmt.Printf("[%s -> %s]\n", from, to)
	})

	restaurant, err := c.Scan(qrPayload)
	if err != nil {
		return err
	}
	catalog, err := client.FetchMenu(ctx, restaurant.ID)
	if err != nil {
		return fmt.Errorf("load menu: %w", err)
	}
	fmt.Printf("%s: %d items on the menu\n", restaurant.Name, len(catalog))

	picks, err := parseItems(items)
	if err != nil {
		return err
	}
	if len(picks) == 0 && len(catalog) > 0 {
		picks = []pick{{ProductID: catalog[0].ID, Quantity: 1}}
	}
	for _, p := range picks {
		item, ok := findItem(catalog, p.ProductID)
		if !ok {
			return fmt.Errorf("product %s is not on the menu", p.ProductID)
		}
		if err := c.AddToCart(item.Product(), p.Quantity, p.Notes); err != nil {
			return err
		}
	}
	printCart(c.Cart(), c.Total())

	res, err := c.Checkout(ctx, pin)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	fmt.Printf("Order sent for table %s\n", res.Table)

	go func() {
		err := client.TicketStream().Follow(ctx, res.PIN, func(ev backend.TicketEvent) {
			if ev.Closed || ev.Ticket == nil {
				return
			}
			if c.ApplyTicket(ev.PIN, ev.Ticket) {
				printTicket(ev.Ticket)
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Warn("ticket stream ended", zap.Error(err))
		}
	}()

	if bill != "" {
		if err := c.RequestBill(ctx, order.PaymentMethod(bill)); err != nil {
			return fmt.Errorf("request bill: %w", err)
		}
		fmt.Println("Bill requested")
	}

	fmt.Println("Waiting for the table to be closed (Ctrl+C to leave)...")
	select {
	case n := <-closed:
		fmt.Printf("%s: %s\n", n.Title, n.Message)
	case <-ctx.Done():
		c.Exit()
	}
	return nil
}

func findItem(items []menu.Item, id string) (menu.Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return menu.Item{}, false
}

func printCart(lines []cart.Line, total decimal.Decimal) {
	for _, l := range lines {
		fmt.Printf("  %dx %s  %s\n", l.Quantity, l.Name, cart.FormatMoney(l.Subtotal()))
	}
	fmt.Printf("  total %s\n", cart.FormatMoney(total))
}

func printTicket(t *order.Ticket) {
	fmt.Printf("Ticket (%s) table %s total %s\n", t.Status, t.Table, cart.FormatMoney(t.Total))
	for _, it := range t.Items {
		fmt.Printf("  %dx %s  %s  [%s]\n", it.Quantity, it.Name, cart.FormatMoney(it.Subtotal), it.Status)
	}
}
