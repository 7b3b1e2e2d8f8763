package gps

import (
	"testing"

	"gpsfeed/internal/nmea"
)

func TestSkyView_AssemblesSequence(t *testing.T) {
	s := New(Config{Enable: true, SkyView: true}, nil)
	consume(t, s,
		nmea.Sentence("GPGSV,2,1,06,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00")+
			nmea.Sentence("GPGSV,2,2,06,14,25,170,30,16,57,208,"))

	sky := s.Snapshot().Sky
	if len(sky) != 6 {
		t.Fatalf("sky=%d sats want 6: %+v", len(sky), sky)
	}
	wantPRN := []int{3, 4, 6, 13, 14, 16}
	for i, p := range wantPRN {
		if sky[i].PRN != p || sky[i].Talker != "GP" {
			t.Fatalf("sky[%d]=%s/%d want GP/%d", i, sky[i].Talker, sky[i].PRN, p)
		}
	}
	sat14 := sky[4]
	if sat14.ElevationDeg == nil || *sat14.ElevationDeg != 25 || sat14.AzimuthDeg == nil || *sat14.AzimuthDeg != 170 {
		t.Fatalf("sat 14=%+v", sat14)
	}
	if sat14.SNR == nil || *sat14.SNR != 30 {
		t.Fatalf("sat 14 snr=%v want 30", sat14.SNR)
	}
	if sky[5].SNR != nil {
		t.Fatalf("sat 16 is not tracked, snr=%v want nil", *sky[5].SNR)
	}
}

func TestSkyView_DropsSatellitesMissingFromNextCycle(t *testing.T) {
	s := New(Config{Enable: true, SkyView: true}, nil)
	consume(t, s,
		nmea.Sentence("GPGSV,2,1,06,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00")+
			nmea.Sentence("GPGSV,2,2,06,14,25,170,30,16,57,208,")+
			nmea.Sentence("GPGSV,1,1,02,03,05,112,20,14,26,171,31"))

	sky := s.Snapshot().Sky
	if len(sky) != 2 || sky[0].PRN != 3 || sky[1].PRN != 14 {
		t.Fatalf("sky=%+v want PRNs 3 and 14", sky)
	}
	if *sky[0].SNR != 20 || *sky[1].ElevationDeg != 26 {
		t.Fatalf("sky values not refreshed: %+v %+v", sky[0], sky[1])
	}
}

func TestSkyView_IgnoresSignalIDTerm(t *testing.T) {
	s := New(Config{Enable: true, SkyView: true}, nil)
	consume(t, s, nmea.Sentence("GPGSV,1,1,01,07,40,050,35,1"))

	sky := s.Snapshot().Sky
	if len(sky) != 1 || sky[0].PRN != 7 {
		t.Fatalf("sky=%+v want only PRN 7", sky)
	}
}

func TestSkyView_KeepsConstellationsApart(t *testing.T) {
	s := New(Config{Enable: true, SkyView: true}, nil)
	consume(t, s,
		nmea.Sentence("GPGSV,1,1,01,07,40,050,35")+
			nmea.Sentence("GLGSV,1,1,01,07,10,300,22"))

	sky := s.Snapshot().Sky
	if len(sky) != 2 || sky[0].Talker != "GL" || sky[1].Talker != "GP" {
		t.Fatalf("sky=%+v want GL/7 and GP/7", sky)
	}
}

func TestSkyView_DisabledLeavesSkyEmpty(t *testing.T) {
	s := New(Config{Enable: true}, nil)
	consume(t, s, nmea.Sentence("GPGSV,1,1,01,07,40,050,35"))
	if sky := s.Snapshot().Sky; sky != nil {
		t.Fatalf("sky=%+v want nil", sky)
	}
}
