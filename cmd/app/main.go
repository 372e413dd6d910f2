// @title KlipperPlace API
// @version 1.0.0
// @description API для трансляции семантических команд pick-and-place в вызовы Moonraker/Klipper.
// @host localhost:8080
// @BasePath /api/v1
package main

import "github.com/klipperplace/pnpService/internal/app"

func main() {
	// Создаем и запускаем новый экземпляр приложения fx
	app.New().Run()
}
