// signin writes a session record into the local store so the daemon can
// resolve an identity. The production app does this after its auth flow;
// this tool covers development setups against relaysim.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/session"
)

func main() {
	var path, user, token string
	flag.StringVar(&path, "path", "./.heartlink", "session store path")
	flag.StringVar(&user, "user", "", "user id to sign in as")
	flag.StringVar(&token, "token", "", "optional auth token to store")
	flag.Parse()
	if user == "" {
		fmt.Fprintln(os.Stderr, "--user required")
		os.Exit(2)
	}
	logger.Init()

	if err := session.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	if err := session.SaveSession(models.Session{UserID: user, Token: token, SignedInAt: time.Now().UTC()}); err != nil {
		fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("signed in as %s (store: %s)\n", user, path)
}
