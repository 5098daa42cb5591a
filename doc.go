// Package launcher sequences the startup of a long-running process.
//
// An Application is prepared once with functional options and started once:
//
//	app, err := launcher.Prepare("my-service",
//		launcher.WithConfiguration(os.Args[1:], defaults),
//		launcher.WithUpdate("https://updates.example.com/my-service/manifest.json", 5*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = app.StartWith(ctx, launcher.StarterFunc(run))
//
// Start configures logging from the resolved configuration, displays the
// banner, logs the process provenance, shows the splash screen, applies a
// pending update through the updater package and finally runs the Starter.
// Lifecycle and update progress are published to registered Observers as
// CloudEvents.
package launcher
