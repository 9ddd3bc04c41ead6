package uplink

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/filetransfer"
	"github.com/edgekit/uplink/internal/observability"
	"github.com/edgekit/uplink/internal/protocol"
)

// defaultHandlers is the closed set of command tags the dispatcher routes.
// Anything else is forwarded to the caller.
func defaultHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ping":              handlePing,
		"pong":              handlePong,
		"file_query":        handleFileQuery,
		"file_write":        handleFileWrite,
		"file_data":         handleFileData,
		"time":              handleTime,
		"net_metrics_query": handleNetMetricsQuery,
		"system_query":      handleSystemQuery,
	}
}

// handlePing echoes the ping back as a pong, keeping all fields so the server
// can correlate its own timestamps.
func handlePing(c *Client, m protocol.Message) {
	reply := make(protocol.Message, len(m))
	for k, v := range m {
		reply[k] = v
	}
	reply["cmd"] = "pong"
	c.Send(reply)

	if ts, ok := m.StringField("timestamp"); ok {
		// server timestamps look like "1693737600.123"; the integer part is
		// enough for a one-way delay estimate
		sec, err := strconv.ParseInt(strings.SplitN(ts, ".", 2)[0], 10, 64)
		if err == nil {
			log.Debug().Int64("delay_s", c.now().Unix()-sec).Msg("uplink: ping received")
		}
	}
}

func handlePong(c *Client, m protocol.Message) {
	if millis, ok := m.IntField("millis"); ok {
		rtt := c.now().UnixMilli() - millis
		log.Debug().Int64("rtt_ms", rtt).Msg("uplink: ping response")
	}
}

func handleFileQuery(c *Client, m protocol.Message) {
	if !c.cfg.EnableFileManagement {
		return
	}
	filename, ok := m.StringField("filename")
	if !ok {
		log.Warn().Msg("uplink: file_query without filename")
		return
	}
	reply := protocol.Message{
		"cmd":      "file_info",
		"filename": filename,
	}
	size, digest, err := filetransfer.Probe(c.cfg.Root, filename)
	if err != nil {
		reply["size"] = nil
		reply["md5"] = nil
	} else {
		reply["size"] = size
		reply["md5"] = digest
	}
	c.Send(reply)
}

// handleFileWrite opens a new transfer session, implicitly abandoning any
// prior incomplete one, and asks the server for the first chunk.
func handleFileWrite(c *Client, m protocol.Message) {
	if !c.cfg.EnableFileManagement {
		return
	}
	filename, ok := m.StringField("filename")
	if !ok {
		log.Warn().Msg("uplink: file_write without filename")
		return
	}
	size, sizeOK := m.IntField("size")
	digest, digestOK := m.StringField("md5")
	if !sizeOK || !digestOK {
		c.sendFileError(filename, "file_write missing size or md5")
		return
	}
	c.writer = filetransfer.NewWriter(c.cfg.Root, filename, size, digest)
	c.Send(protocol.Message{
		"cmd":      "file_continue",
		"filename": filename,
		"position": int64(0),
	})
}

func handleFileData(c *Client, m protocol.Message) {
	if !c.cfg.EnableFileManagement {
		return
	}
	filename, _ := m.StringField("filename")
	if c.writer == nil {
		c.sendFileError(filename, "no transfer in progress")
		return
	}
	encoded, ok := m.StringField("data")
	if !ok {
		c.sendFileError(filename, "file_data without data")
		return
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.sendFileError(filename, "bad base64 payload: "+err.Error())
		return
	}

	if err := c.writer.Write(payload); err != nil {
		// storage failure: report and do not advance the transfer
		observability.RecordFileTransfer("error")
		c.sendFileError(filename, err.Error())
		return
	}

	if eof, _ := m.BoolField("eof"); eof {
		err := c.writer.Commit()
		c.writer = nil
		if err != nil {
			observability.RecordFileTransfer("aborted")
			c.sendFileError(filename, err.Error())
			return
		}
		observability.RecordFileTransfer("committed")
		c.Send(protocol.Message{
			"cmd":      "file_write_ok",
			"filename": filename,
		})
		return
	}

	position, ok := m.IntField("position")
	if !ok {
		position = c.writer.Position() - int64(len(payload))
	}
	c.Send(protocol.Message{
		"cmd":      "file_continue",
		"filename": filename,
		"position": position + int64(len(payload)),
	})
}

func (c *Client) sendFileError(filename, msg string) {
	c.Send(protocol.Message{
		"cmd":      "file_write_error",
		"filename": filename,
		"error":    msg,
	})
}

func handleTime(c *Client, m protocol.Message) {
	if !c.cfg.EnableTimeSync {
		return
	}
	secs, ok := m.IntField("time")
	if !ok {
		return
	}
	if err := c.collab.Clock.SetTime(time.Unix(secs, 0)); err != nil {
		log.Warn().Err(err).Msg("uplink: clock sync failed")
	}
}

func handleNetMetricsQuery(c *Client, m protocol.Message) {
	stats := c.conn.Stats()
	reply := protocol.Message{
		"cmd":             "net_metrics_info",
		"millis":          c.now().UnixMilli(),
		"time":            c.now().Unix(),
		"net_tcp_reconns": stats.Connects,
		"net_bytes_sent":  stats.BytesSent,
		"net_bytes_recv":  stats.BytesReceived,
		"net_sent":        c.sent,
		"net_received":    c.received,
		"net_send_errors": c.sendErrors,
	}
	for k, v := range c.collab.Platform.NetMetrics() {
		reply[k] = v
	}
	c.Send(reply)
}

func handleSystemQuery(c *Client, m protocol.Message) {
	reply := protocol.Message{
		"cmd":    "system_info",
		"millis": c.now().UnixMilli(),
		"time":   c.now().Unix(),
	}
	for k, v := range c.collab.Platform.SystemInfo() {
		reply[k] = v
	}
	c.Send(reply)
}
