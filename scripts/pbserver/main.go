// Command pbserver runs an embedded PocketBase instance with the dawam
// collections migrated in, for use as the STORE=pocketbase backend.
package main

import (
	"log"

	"github.com/pocketbase/pocketbase"

	_ "dawam/migrations"
)

func main() {
	app := pocketbase.New()

	log.Println("🗄️  Starting PocketBase with dawam migrations")
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
