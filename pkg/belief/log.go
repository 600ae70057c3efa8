package belief

import "github.com/sirupsen/logrus"

var log = logrus.WithField("component", "belief")
