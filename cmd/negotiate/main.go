// Command negotiate submits a negotiation to the API and follows it from the
// terminal until it settles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"negotiation-platform/internal/poller"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:8080", "negotiation API base URL")
		message     = flag.String("message", "", "what you want handled, e.g. \"Cancel my gym subscription\"")
		name        = flag.String("name", "", "your full name")
		phone       = flag.String("phone", "", "customer service phone number to call")
		email       = flag.String("email", "", "your email (optional)")
		order       = flag.String("order", "", "order or reference number (required for refunds/returns)")
		screenshot  = flag.String("screenshot", "", "path to an order screenshot (alternative to -order)")
		apptTime    = flag.String("appointment-time", "", "appointment time, for booking requests")
		apptAction  = flag.String("appointment-action", "", "book or cancel, for appointment requests")
		interval    = flag.Duration("interval", 2*time.Second, "status poll interval")
	)
	flag.Parse()

	if *message == "" || *phone == "" {
		fmt.Fprintln(os.Stderr, "both -message and -phone are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := poller.New(poller.Config{BaseURL: *server, Interval: *interval})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	id, err := client.Start(ctx, poller.StartRequest{
		Message:           *message,
		FullName:          *name,
		PhoneNumber:       *phone,
		Email:             *email,
		OrderNumber:       *order,
		ScreenshotPath:    *screenshot,
		AppointmentTime:   *apptTime,
		AppointmentAction: *apptAction,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Negotiation %s started.\n", id)

	final, err := client.Watch(ctx, id, func(phase, line string) {
		if line != "" {
			fmt.Println(line)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch final.Status {
	case "completed":
		fmt.Println("\nDone.")
		if final.Result != nil {
			fmt.Printf("Outcome: %s\n", final.Result.Outcome)
			if final.Result.RealConfirmationCode != nil {
				fmt.Printf("Confirmation code: %s\n", final.Result.Code)
			} else {
				fmt.Printf("Reference (no code given by the representative): %s\n", final.Result.Code)
			}
			if final.Result.RefundAmount != nil {
				fmt.Printf("Refund: $%.2f\n", *final.Result.RefundAmount)
			}
		}
	case "failed":
		fmt.Fprintf(os.Stderr, "\nNegotiation failed: %s\n", final.Error)
		os.Exit(1)
	}
}
