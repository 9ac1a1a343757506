package main

import (
	"flag"
	"log"
	"os"

	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/wifibridge/pkg/monitor"
)

var (
	mqttURL = "mqtt://localhost:1883/bridge/"
)

func init() {
	if val := os.Getenv("BRIDGE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := monitor.NewQueueFromURL(mqttURL, "mon-"+monitor.DeviceID())
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	var m jsonpb.Marshaler
	q.Sub("#", monitor.Handler(func(topic string, payload []byte) {
		s, err := monitor.DecodeStruct(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		out, err := m.MarshalToString(s)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, out)
	}))
	<-(chan struct{})(nil)
}
