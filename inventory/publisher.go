package inventory

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ReportPublisher publishes finished validation reports to MQTT so the
// processing stage and audit consumers can pick them up without polling.
type ReportPublisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// reportNotice is the published summary envelope; full reports stay with
// the persistence boundary, the wire carries the roll-up.
type reportNotice struct {
	UploadID   uuid.UUID     `json:"uploadId"`
	FinalState Stage         `json:"finalState"`
	Summary    ReportSummary `json:"summary"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewReportPublisher creates a report publisher. A nil client disables
// publishing (used in tests and when MQTT is not configured).
func NewReportPublisher(client mqtt.Client, prefix string) *ReportPublisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "forest-inventory"
	}
	return &ReportPublisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // reports are re-derivable; fire and forget
		retain:        true, // retain the latest report per upload
	}
}

// PublishReport publishes a report summary to the per-upload topic and to
// the shared latest-report topic.
func (p *ReportPublisher) PublishReport(report *ValidationReport) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	notice := reportNotice{
		UploadID:   report.UploadID,
		FinalState: report.FinalState,
		Summary:    report.Summary,
		Timestamp:  report.Timestamp,
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshaling report notice: %w", err)
	}

	perUpload := fmt.Sprintf("%s/reports/%s", p.publishPrefix, report.UploadID)
	if token := p.client.Publish(perUpload, p.qos, p.retain, payload); token.Wait() && token.Error() != nil {
		log.Printf("Error publishing report for upload %s: %v", report.UploadID, token.Error())
		return token.Error()
	}

	latest := fmt.Sprintf("%s/reports/latest", p.publishPrefix)
	if token := p.client.Publish(latest, p.qos, p.retain, payload); token.Wait() && token.Error() != nil {
		log.Printf("Error publishing latest report: %v", token.Error())
		return token.Error()
	}
	return nil
}

// ConnectMQTT builds and connects a paho client from config, with env-var
// overrides. Returns nil without error when no broker is configured; MQTT
// is optional.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = cfg.Broker
	}
	if broker == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = cfg.ClientID
	}
	if clientID == "" {
		clientID = "forest-inventory"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = cfg.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = cfg.Password
		}
		opts.SetPassword(password)
	}

	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", broker, token.Error())
	}
	log.Printf("Connected to MQTT broker %s as %s", broker, clientID)
	return client, nil
}
