package main

func main() {
	app := mustBootstrap()
	defer app.Close()

	if err := app.Run(); err != nil && !app.canceled(err) {
		panic(err)
	}
}
